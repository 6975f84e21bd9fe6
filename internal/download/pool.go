package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull   = errors.New("download queue is full")
	ErrPoolStopped = errors.New("download pool is stopped")
)

// Pool limits
const (
	MinWorkers       = 1
	MaxWorkers       = 10
	DefaultWorkers   = 2
	DefaultQueueSize = 100
)

// Task is a unit of work run by the pool
type Task func() error

// PoolMetrics is a point-in-time view of pool counters
type PoolMetrics struct {
	Workers   int   `json:"workers"`
	Active    int64 `json:"active"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	// ProcessingTime is the summed task run time
	ProcessingTime time.Duration `json:"processing_time"`
}

type poolCounters struct {
	active         atomic.Int64
	pending        atomic.Int64
	completed      atomic.Int64
	failed         atomic.Int64
	processingTime atomic.Int64
}

// Pool runs tasks on a fixed number of workers fed by a bounded queue
type Pool struct {
	workers int
	tasks   chan Task

	mutex   sync.RWMutex
	stopped bool
	started bool
	wg      sync.WaitGroup

	counters poolCounters
}

// NewPool creates a pool. workers is clamped to [MinWorkers, MaxWorkers];
// a non-positive queueSize falls back to DefaultQueueSize.
func NewPool(workers, queueSize int) *Pool {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Pool{
		workers: ClampWorkers(workers),
		tasks:   make(chan Task, queueSize),
	}
}

// ClampWorkers bounds a requested worker count to [MinWorkers, MaxWorkers]
func ClampWorkers(n int) int {
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Submit enqueues a task without blocking
func (p *Pool) Submit(task Task) error {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	// pending is counted before a worker can take the task
	p.counters.pending.Add(1)
	select {
	case p.tasks <- task:
		return nil
	default:
		p.counters.pending.Add(-1)
		return ErrQueueFull
	}
}

// Stop refuses new tasks and waits until the workers have drained the queue
// or ctx is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.mutex.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.tasks)
	}
	p.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

// Metrics returns the current counters
func (p *Pool) Metrics() PoolMetrics {
	return PoolMetrics{
		Workers:        p.workers,
		Active:         p.counters.active.Load(),
		Pending:        p.counters.pending.Load(),
		Completed:      p.counters.completed.Load(),
		Failed:         p.counters.failed.Load(),
		ProcessingTime: time.Duration(p.counters.processingTime.Load()),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

// run executes one task; a panic counts as a failure and does not kill the worker
func (p *Pool) run(task Task) {
	start := time.Now()
	p.counters.pending.Add(-1)
	p.counters.active.Add(1)

	defer func() {
		p.counters.active.Add(-1)
		p.counters.processingTime.Add(time.Since(start).Nanoseconds())
		if r := recover(); r != nil {
			p.counters.failed.Add(1)
		}
	}()

	if err := task(); err != nil {
		p.counters.failed.Add(1)
		return
	}
	p.counters.completed.Add(1)
}
