package progress

import "captionclip/internal/model"

// Stage identifies a high-level step in a job. Stages mirror model.JobState
// plus the engine-only "deps" check.
type Stage string

const (
	StageDeps        Stage = "deps"
	StageResolving   Stage = "resolving"
	StageFetching    Stage = "fetching"
	StageNormalizing Stage = "normalizing"
	StageCompositing Stage = "compositing"
	StageExporting   Stage = "exporting"
	StageCompleted   Stage = "completed"
	StageError       Stage = "error"
)

// StageFor maps a job state onto the stage shown to observers.
func StageFor(s model.JobState) Stage {
	switch s {
	case model.StateResolving:
		return StageResolving
	case model.StateFetching:
		return StageFetching
	case model.StateNormalizing:
		return StageNormalizing
	case model.StateCompositing:
		return StageCompositing
	case model.StateExporting:
		return StageExporting
	case model.StateSucceeded:
		return StageCompleted
	case model.StateFailed:
		return StageError
	}
	return StageDeps
}

// LogStream indicates which stream produced a log line.
type LogStream int

const (
	StreamStdout LogStream = iota
	StreamStderr
)

// Update conveys progress or stage changes for a job.
// Percent is 0..100 when known, negative when unknown.
type Update struct {
	JobID   string
	Stage   Stage
	Percent float64

	Bytes   *int64  // optional cumulative bytes
	Speed   *string // optional, e.g. "1.2x"
	Message string  // short status line, e.g. the engine's coarse timestamp
}

// Log is an engine output line associated with a job.
type Log struct {
	JobID  string
	Stream LogStream
	Line   string
}

// Result is emitted exactly once per job when it succeeds or fails.
type Result struct {
	JobID      string
	Kind       model.JobKind
	OutputPath string
	Bytes      int64
	Err        error // nil on success
}

// Reporter is implemented by the UI or any observer interested in progress events.
type Reporter interface {
	Update(u Update)
	Log(l Log)
	Result(r Result)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Update(Update) {}
func (Discard) Log(Log)       {}
func (Discard) Result(Result) {}
