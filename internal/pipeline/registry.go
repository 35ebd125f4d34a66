package pipeline

import "sync"

// maxFinished bounds how many terminal jobs the registry remembers.
const maxFinished = 256

// Registry indexes jobs by ID for status queries and cancellation.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

func (r *Registry) add(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
	r.order = append(r.order, j.ID)
	r.pruneLocked()
}

// pruneLocked forgets the oldest terminal jobs beyond maxFinished.
func (r *Registry) pruneLocked() {
	finished := 0
	for _, id := range r.order {
		if r.jobs[id].State().IsTerminal() {
			finished++
		}
	}
	if finished <= maxFinished {
		return
	}
	kept := r.order[:0]
	for _, id := range r.order {
		if finished > maxFinished && r.jobs[id].State().IsTerminal() {
			delete(r.jobs, id)
			finished--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

// Get returns a snapshot of job id.
func (r *Registry) Get(id string) (Snapshot, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrJobNotFound
	}
	return j.Snapshot(), nil
}

// Cancel aborts job id if it is still running.
func (r *Registry) Cancel(id string) error {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	return j.Cancel()
}

// List returns snapshots in creation order.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.jobs[id].Snapshot())
	}
	return out
}
