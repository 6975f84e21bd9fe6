package jobs

import (
	"context"
	"sort"
	"time"

	"github.com/ytget/yt-downloader-api/internal/model"
)

// DefaultStreamInterval is the push period of Stream
const DefaultStreamInterval = 500 * time.Millisecond

// Projection exposes read-only views over a registry
type Projection struct {
	registry *Registry
	interval time.Duration
}

// NewProjection creates a projection pushing snapshots every interval
func NewProjection(registry *Registry, interval time.Duration) *Projection {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &Projection{registry: registry, interval: interval}
}

// Poll returns the current snapshot of a job
func (p *Projection) Poll(id string) (model.Job, error) {
	return p.registry.Get(id)
}

// List returns snapshots of all jobs ordered by creation time
func (p *Projection) List() []model.Job {
	all := p.registry.List()
	out := make([]model.Job, 0, len(all))
	for _, job := range all {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Stream sends the job snapshot immediately and then once per interval until
// a terminal snapshot was sent. It returns ErrNotFound if the job disappears
// or never existed (nothing is sent in that case), the send error if the
// consumer went away, or ctx.Err() on cancellation.
func (p *Projection) Stream(ctx context.Context, id string, send func(model.Job) error) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		job, err := p.registry.Get(id)
		if err != nil {
			return err
		}
		if err := send(job); err != nil {
			return err
		}
		if job.Status.IsFinished() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
