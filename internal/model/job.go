package model

// JobKind names the user action a job serves.
type JobKind string

const (
	JobAcquire JobKind = "acquire"
	JobRender  JobKind = "render"
	JobExport  JobKind = "export"
)

// JobState is a step in a job's lifecycle. States only move forward.
type JobState string

const (
	StatePending     JobState = "pending"
	StateResolving   JobState = "resolving"
	StateFetching    JobState = "fetching"
	StateNormalizing JobState = "normalizing"
	StateCompositing JobState = "compositing"
	StateExporting   JobState = "exporting"
	StateSucceeded   JobState = "succeeded"
	StateFailed      JobState = "failed"
)

var stateOrder = map[JobState]int{
	StatePending:     0,
	StateResolving:   1,
	StateFetching:    2,
	StateNormalizing: 3,
	StateCompositing: 4,
	StateExporting:   5,
	StateSucceeded:   6,
	StateFailed:      6,
}

// IsTerminal reports whether s is succeeded or failed.
func (s JobState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// CanAdvance reports whether a job in from may move to to. Active states may
// be skipped but never revisited; terminal states are final.
func CanAdvance(from, to JobState) bool {
	if from.IsTerminal() {
		return false
	}
	fi, ok := stateOrder[from]
	if !ok {
		return false
	}
	ti, ok := stateOrder[to]
	if !ok {
		return false
	}
	return ti > fi
}
