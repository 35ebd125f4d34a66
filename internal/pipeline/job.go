package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"captionclip/internal/model"
)

var (
	// ErrInvalidTransition is returned when a job would move backwards or
	// leave a terminal state.
	ErrInvalidTransition = errors.New("invalid job state transition")
	// ErrJobNotFound is returned by the registry for unknown IDs.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobFinished is returned when cancelling a job that already ended.
	ErrJobFinished = errors.New("job already finished")
)

// Job is one acquisition, render or export. It owns the temp assets created
// on its behalf until it reaches a terminal state.
type Job struct {
	ID      string
	Kind    model.JobKind
	Created time.Time

	mu       sync.Mutex
	state    model.JobState
	assets   []model.TempAsset
	output   string
	err      error
	finished time.Time
	cancel   context.CancelFunc
}

func newJob(kind model.JobKind, cancel context.CancelFunc) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Kind:    kind,
		Created: time.Now(),
		state:   model.StatePending,
		cancel:  cancel,
	}
}

// State returns the current state.
func (j *Job) State() model.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) advance(to model.JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if to.IsTerminal() || !model.CanAdvance(j.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.state, to)
	}
	j.state = to
	return nil
}

// own records path as a temp asset of this job.
func (j *Job) own(path string) {
	if path == "" {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, a := range j.assets {
		if a.Path == path {
			return
		}
	}
	j.assets = append(j.assets, model.TempAsset{Path: path, Owner: j.ID})
}

// owns reports whether path is a temp asset of this job.
func (j *Job) owns(path string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, a := range j.assets {
		if a.Path == path {
			return true
		}
	}
	return false
}

// disown drops path from the asset set without deleting it.
func (j *Job) disown(path string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, a := range j.assets {
		if a.Path == path {
			j.assets = append(j.assets[:i], j.assets[i+1:]...)
			return true
		}
	}
	return false
}

// terminate moves the job to succeeded (err == nil) or failed exactly once.
// It returns the assets left to delete; ok is false on repeat calls.
func (j *Job) terminate(output string, err error) (assets []model.TempAsset, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return nil, false
	}
	if err != nil {
		j.state = model.StateFailed
		j.err = err
	} else {
		j.state = model.StateSucceeded
		j.output = output
	}
	j.finished = time.Now()
	assets, j.assets = j.assets, nil
	if j.cancel != nil {
		j.cancel()
	}
	return assets, true
}

// Cancel aborts a running job. The job's stage observes the cancelled
// context and fails through the normal cleanup path.
func (j *Job) Cancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.IsTerminal() {
		return ErrJobFinished
	}
	if j.cancel != nil {
		j.cancel()
	}
	return nil
}

// Snapshot is a read-only view of a job.
type Snapshot struct {
	ID         string            `json:"id"`
	Kind       model.JobKind     `json:"kind"`
	State      model.JobState    `json:"state"`
	OutputPath string            `json:"outputPath,omitempty"`
	ErrorKind  model.ErrorKind   `json:"errorKind,omitempty"`
	Message    string            `json:"message,omitempty"`
	TempAssets []model.TempAsset `json:"tempAssets,omitempty"`
	Created    time.Time         `json:"created"`
	Finished   *time.Time        `json:"finished,omitempty"`
}

// Snapshot copies the job's current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Snapshot{
		ID:         j.ID,
		Kind:       j.Kind,
		State:      j.state,
		OutputPath: j.output,
		TempAssets: append([]model.TempAsset(nil), j.assets...),
		Created:    j.Created,
	}
	if j.err != nil {
		s.ErrorKind = model.KindOf(j.err)
		s.Message = j.err.Error()
	}
	if !j.finished.IsZero() {
		f := j.finished
		s.Finished = &f
	}
	return s
}
