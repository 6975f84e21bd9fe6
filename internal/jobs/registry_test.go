package jobs

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ytget/yt-downloader-api/internal/model"
)

func TestCreate(t *testing.T) {
	registry := NewRegistry()

	id := registry.Create(model.JobKindVideo)
	if id == "" {
		t.Fatal("expected non-empty job id")
	}

	job, err := registry.Get(id)
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}

	if job.ID != id {
		t.Errorf("expected ID %s, got %s", id, job.ID)
	}
	if job.Kind != model.JobKindVideo {
		t.Errorf("expected kind video, got %s", job.Kind)
	}
	if job.Status != model.JobStatusQueued {
		t.Errorf("expected status queued, got %s", job.Status)
	}
	if job.Progress != 0 {
		t.Errorf("expected progress 0, got %v", job.Progress)
	}
	if len(job.Payload) != 0 {
		t.Errorf("expected empty payload, got %v", job.Payload)
	}
	if job.Error != "" {
		t.Errorf("expected no error, got %q", job.Error)
	}
	if job.CreatedAt.IsZero() || !job.CreatedAt.Equal(job.UpdatedAt) {
		t.Errorf("expected equal non-zero timestamps, got %v / %v", job.CreatedAt, job.UpdatedAt)
	}
}

func TestCreate_RegeneratesCollidingID(t *testing.T) {
	registry := NewRegistry()
	ids := []string{"dup", "dup", "fresh"}
	registry.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first := registry.Create(model.JobKindVideo)
	second := registry.Create(model.JobKindAudio)

	if first != "dup" || second != "fresh" {
		t.Errorf("expected ids dup/fresh, got %s/%s", first, second)
	}
}

func TestCreate_ConcurrentUniqueness(t *testing.T) {
	registry := NewRegistry()
	const n = 10000

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- registry.Create(model.JobKindVideo)
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n || registry.Len() != n {
		t.Errorf("expected %d unique jobs, got %d (registry %d)", n, len(seen), registry.Len())
	}
}

func TestUpdate_ReadAfterWrite(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create(model.JobKindVideo)

	if err := registry.Update(id, Update{Status: model.JobStatusProcessing}); err != nil {
		t.Fatalf("Update() returned error: %v", err)
	}
	if err := registry.Update(id, Update{Progress: Progress(45.0)}); err != nil {
		t.Fatalf("Update() returned error: %v", err)
	}

	job, _ := registry.Get(id)
	if job.Status != model.JobStatusProcessing {
		t.Errorf("expected processing, got %s", job.Status)
	}
	if job.Progress != 45.0 {
		t.Errorf("expected progress 45, got %v", job.Progress)
	}
}

func TestUpdate_ProgressBounds(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		expected float64
	}{
		{name: "within range", progress: 12.5, expected: 12.5},
		{name: "above 100 is clamped", progress: 150, expected: 100},
		{name: "negative is clamped", progress: -3, expected: 0},
		{name: "NaN is ignored", progress: math.NaN(), expected: 7},
		{name: "Inf is ignored", progress: math.Inf(1), expected: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			id := registry.Create(model.JobKindVideo)
			_ = registry.Update(id, Update{Status: model.JobStatusProcessing, Progress: Progress(7)})

			if err := registry.Update(id, Update{Progress: Progress(tt.progress)}); err != nil {
				t.Fatalf("Update() returned error: %v", err)
			}

			job, _ := registry.Get(id)
			if job.Progress != tt.expected {
				t.Errorf("expected progress %v, got %v", tt.expected, job.Progress)
			}
		})
	}
}

func TestUpdate_ProgressRegressionTolerated(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create(model.JobKindVideo)
	_ = registry.Update(id, Update{Status: model.JobStatusProcessing, Progress: Progress(60)})

	if err := registry.Update(id, Update{Progress: Progress(30)}); err != nil {
		t.Fatalf("Update() returned error: %v", err)
	}

	job, _ := registry.Get(id)
	if job.Progress != 30 {
		t.Errorf("expected progress 30, got %v", job.Progress)
	}
}

func TestUpdate_PayloadMerge(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create(model.JobKindVideo)

	_ = registry.Update(id, Update{Payload: map[string]any{"filename": "a.f137.mp4"}})
	_ = registry.Update(id, Update{Payload: map[string]any{"file_path": "/d/a.mp4"}})
	_ = registry.Update(id, Update{Payload: map[string]any{"filename": "a.mp4"}})

	job, _ := registry.Get(id)
	if len(job.Payload) != 2 {
		t.Fatalf("expected 2 payload keys, got %v", job.Payload)
	}
	if job.Payload["filename"] != "a.mp4" {
		t.Errorf("expected later value to win, got %v", job.Payload["filename"])
	}
	if job.Payload["file_path"] != "/d/a.mp4" {
		t.Errorf("expected earlier key to survive, got %v", job.Payload["file_path"])
	}
}

func TestUpdate_UpdatesTimestamp(t *testing.T) {
	registry := NewRegistry()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := base
	registry.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	id := registry.Create(model.JobKindAudio)
	created, _ := registry.Get(id)

	_ = registry.Update(id, Update{Progress: Progress(1)})
	updated, _ := registry.Get(id)

	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("expected updated_at to advance, got %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("created_at must not change")
	}
}

func TestUpdate_TerminalIsFinal(t *testing.T) {
	terminals := []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed}

	for _, terminal := range terminals {
		t.Run(terminal.String(), func(t *testing.T) {
			registry := NewRegistry()
			id := registry.Create(model.JobKindVideo)
			_ = registry.Update(id, Update{Status: model.JobStatusProcessing, Progress: Progress(50)})

			u := Update{Status: terminal, Payload: map[string]any{"filename": "final.mp4"}}
			if terminal == model.JobStatusFailed {
				u.Error = "boom"
			}
			if err := registry.Update(id, u); err != nil {
				t.Fatalf("terminal Update() returned error: %v", err)
			}
			before, _ := registry.Get(id)

			attempts := []Update{
				{Status: model.JobStatusProcessing},
				{Status: model.JobStatusFailed, Error: "late"},
				{Status: model.JobStatusCompleted},
				{Progress: Progress(99)},
				{Payload: map[string]any{"filename": "other.mp4"}},
			}
			for _, attempt := range attempts {
				err := registry.Update(id, attempt)
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition for %+v, got %v", attempt, err)
				}
			}

			after, _ := registry.Get(id)
			if after.Status != before.Status || after.Progress != before.Progress ||
				after.Error != before.Error || after.Payload["filename"] != "final.mp4" ||
				!after.UpdatedAt.Equal(before.UpdatedAt) {
				t.Errorf("terminal job changed: before %+v, after %+v", before, after)
			}
		})
	}
}

func TestUpdate_IllegalTransition(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create(model.JobKindVideo)

	err := registry.Update(id, Update{Status: model.JobStatusCompleted})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for queued -> completed, got %v", err)
	}

	err = registry.Update(id, Update{Status: model.JobStatus("paused")})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for unknown status, got %v", err)
	}

	job, _ := registry.Get(id)
	if job.Status != model.JobStatusQueued {
		t.Errorf("expected status to stay queued, got %s", job.Status)
	}
}

func TestUpdate_ErrorOnlyWithFailure(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create(model.JobKindVideo)

	_ = registry.Update(id, Update{Status: model.JobStatusProcessing, Error: "ignored"})
	job, _ := registry.Get(id)
	if job.Error != "" {
		t.Errorf("expected no error outside failure, got %q", job.Error)
	}

	_ = registry.Update(id, Update{Status: model.JobStatusFailed, Error: "network timeout"})
	job, _ = registry.Get(id)
	if job.Error != "network timeout" {
		t.Errorf("expected error %q, got %q", "network timeout", job.Error)
	}
}

func TestUpdate_QueuedToFailed(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create(model.JobKindAudio)

	if err := registry.Update(id, Update{Status: model.JobStatusFailed, Error: "could not start"}); err != nil {
		t.Fatalf("Update() returned error: %v", err)
	}

	job, _ := registry.Get(id)
	if job.Status != model.JobStatusFailed || job.Error != "could not start" {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestNotFound(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("never-created")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	err = registry.Update("never-created", Update{Progress: Progress(1)})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from Update, got %v", err)
	}

	// A failed job with an empty error is still found
	id := registry.Create(model.JobKindVideo)
	_ = registry.Update(id, Update{Status: model.JobStatusFailed})
	job, err := registry.Get(id)
	if err != nil {
		t.Fatalf("expected failed job to be found, got %v", err)
	}
	if job.Status != model.JobStatusFailed || job.Error != "" {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	registry := NewRegistry()
	id := registry.Create(model.JobKindVideo)
	_ = registry.Update(id, Update{Payload: map[string]any{"filename": "a.mp4"}})

	job, _ := registry.Get(id)
	job.Payload["filename"] = "mutated"
	job.Status = model.JobStatusCompleted

	again, _ := registry.Get(id)
	if again.Payload["filename"] != "a.mp4" || again.Status != model.JobStatusQueued {
		t.Errorf("registry state leaked through snapshot: %+v", again)
	}
}

func TestConcurrentUpdatesAcrossJobs(t *testing.T) {
	registry := NewRegistry()
	const n = 200

	ids := make([]string, n)
	for i := range ids {
		ids[i] = registry.Create(model.JobKindVideo)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_ = registry.Update(id, Update{Status: model.JobStatusProcessing})
			for p := 1; p <= 50; p++ {
				_ = registry.Update(id, Update{
					Progress: Progress(float64(p * 2)),
					Payload:  map[string]any{fmt.Sprintf("k%d", p%5): i},
				})
			}
			_ = registry.Update(id, Update{Status: model.JobStatusCompleted})
		}(i, id)
	}

	// Concurrent readers must never observe torn state
	done := make(chan struct{})
	go func() {
		defer close(done)
		for k := 0; k < 500; k++ {
			for _, job := range registry.List() {
				if job.Status == model.JobStatusCompleted && job.Progress != 100 {
					t.Errorf("completed job %s with progress %v", job.ID, job.Progress)
					return
				}
			}
		}
	}()

	wg.Wait()
	<-done

	for i, id := range ids {
		job, err := registry.Get(id)
		if err != nil {
			t.Fatalf("Get(%s) returned error: %v", id, err)
		}
		if job.Status != model.JobStatusCompleted {
			t.Errorf("job %d: expected completed, got %s", i, job.Status)
		}
		if job.Progress != 100 {
			t.Errorf("job %d: expected progress 100, got %v", i, job.Progress)
		}
		if len(job.Payload) != 5 || job.Payload["k0"] != i {
			t.Errorf("job %d: unexpected payload %v", i, job.Payload)
		}
	}
}

func TestListAndStats(t *testing.T) {
	registry := NewRegistry()
	a := registry.Create(model.JobKindVideo)
	b := registry.Create(model.JobKindAudio)
	c := registry.Create(model.JobKindVideo)
	_ = registry.Update(b, Update{Status: model.JobStatusProcessing})
	_ = registry.Update(c, Update{Status: model.JobStatusFailed, Error: "x"})

	all := registry.List()
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}
	if all[a].Status != model.JobStatusQueued {
		t.Errorf("expected job a queued, got %s", all[a].Status)
	}

	stats := registry.Stats()
	expected := map[model.JobStatus]int{
		model.JobStatusQueued:     1,
		model.JobStatusProcessing: 1,
		model.JobStatusCompleted:  0,
		model.JobStatusFailed:     1,
	}
	for status, count := range expected {
		if stats[status] != count {
			t.Errorf("stats[%s] = %d, expected %d", status, stats[status], count)
		}
	}
}
