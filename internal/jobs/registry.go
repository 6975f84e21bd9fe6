package jobs

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ytget/yt-downloader-api/internal/model"
)

var (
	// ErrNotFound is returned for identifiers unknown to the registry
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when an update targets a terminal job
	// or asks for a status change the state machine does not allow
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Progress bounds
const (
	MinProgress = 0.0
	MaxProgress = 100.0
)

// Update carries the fields to apply to a job. Zero values mean "leave as is".
type Update struct {
	Status   model.JobStatus
	Progress *float64
	Payload  map[string]any
	// Error is only recorded together with a transition to failed
	Error string
}

// Progress returns a pointer suitable for Update.Progress
func Progress(p float64) *float64 {
	return &p
}

type entry struct {
	mu  sync.Mutex
	job model.Job
}

// Registry maps job identifiers to job records
type Registry struct {
	jobs  map[string]*entry
	mutex sync.RWMutex
	now   func() time.Time
	newID func() string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		jobs:  make(map[string]*entry),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Create inserts a queued job of the given kind and returns its identifier
func (r *Registry) Create(kind model.JobKind) string {
	now := r.now()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	id := r.newID()
	for {
		if _, exists := r.jobs[id]; !exists {
			break
		}
		id = r.newID()
	}

	r.jobs[id] = &entry{job: model.Job{
		ID:        id,
		Kind:      kind,
		Status:    model.JobStatusQueued,
		Progress:  0,
		Payload:   make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}}
	return id
}

// Update applies u to the job with the given id. Updates for one job are
// serialized; updates for different jobs only contend on the map read lock.
func (r *Registry) Update(id string, u Update) error {
	e, ok := r.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	job := &e.job
	if job.Status.IsFinished() {
		return fmt.Errorf("%w: job %s is already %s", ErrInvalidTransition, id, job.Status)
	}
	if u.Status != "" {
		if !u.Status.IsValid() || !job.Status.CanTransitionTo(u.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, u.Status)
		}
	}

	if u.Status != "" {
		job.Status = u.Status
	}
	if u.Progress != nil {
		if p, ok := clampProgress(*u.Progress); ok {
			job.Progress = p
		}
	}
	for k, v := range u.Payload {
		job.Payload[k] = v
	}
	if u.Error != "" && u.Status == model.JobStatusFailed && job.Error == "" {
		job.Error = u.Error
	}
	job.UpdatedAt = r.now()

	return nil
}

// Get returns a snapshot of the job
func (r *Registry) Get(id string) (model.Job, error) {
	e, ok := r.lookup(id)
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

// List returns snapshots of all jobs
func (r *Registry) List() map[string]model.Job {
	r.mutex.RLock()
	entries := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, e)
	}
	r.mutex.RUnlock()

	out := make(map[string]model.Job, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out[e.job.ID] = e.job.Clone()
		e.mu.Unlock()
	}
	return out
}

// Stats returns the number of jobs per status
func (r *Registry) Stats() map[model.JobStatus]int {
	stats := map[model.JobStatus]int{
		model.JobStatusQueued:     0,
		model.JobStatusProcessing: 0,
		model.JobStatusCompleted:  0,
		model.JobStatusFailed:     0,
	}
	for _, job := range r.List() {
		stats[job.Status]++
	}
	return stats
}

// Len returns the number of jobs
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.jobs)
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	e, ok := r.jobs[id]
	return e, ok
}

// clampProgress bounds p to [0, 100]; NaN and infinities are rejected
func clampProgress(p float64) (float64, bool) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, false
	}
	if p < MinProgress {
		return MinProgress, true
	}
	if p > MaxProgress {
		return MaxProgress, true
	}
	return p, true
}
