package ui

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"captionclip/internal/pipeline"
	"captionclip/internal/progress"
)

// maxLogLines bounds the engine output kept per row.
const maxLogLines = 50

type jobState struct {
	row       int
	reference string
	stage     progress.Stage
	status    string
	percent   float64 // -1 means unknown
	bytes     int64

	started bool
	done    bool
	result  pipeline.AcquireResult
	err     error

	spinner spinner.Model
	bar     bubblesprogress.Model

	logs []string
}

func newJobState(row int, reference string, styles Styles) *jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	return &jobState{
		row:       row,
		reference: reference,
		stage:     progress.StageDeps,
		status:    "Queued",
		percent:   -1,
		spinner:   sp,
		bar:       bubblesprogress.New(bubblesprogress.WithDefaultGradient(), bubblesprogress.WithWidth(40)),
	}
}

func (js *jobState) appendLog(line string) {
	if len(js.logs) >= maxLogLines {
		js.logs = js.logs[1:]
	}
	js.logs = append(js.logs, line)
}

func (js *jobState) lastLog() string {
	if len(js.logs) == 0 {
		return ""
	}
	return js.logs[len(js.logs)-1]
}
