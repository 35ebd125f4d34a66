package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"captionclip/internal/progress"
)

// rowReporter forwards one row's pipeline events into the program.
// Progress and log lines are dropped when the channel is full; the row's
// outcome is delivered by jobDoneMsg instead of Result.
type rowReporter struct {
	row int
	ch  chan<- tea.Msg
}

func (r rowReporter) Update(u progress.Update) {
	select {
	case r.ch <- jobUpdateMsg{Row: r.row, U: u}:
	default:
	}
}

func (r rowReporter) Log(l progress.Log) {
	select {
	case r.ch <- jobLogMsg{Row: r.row, L: l}:
	default:
	}
}

func (rowReporter) Result(progress.Result) {}
