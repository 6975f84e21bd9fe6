package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ytget/yt-downloader-api/internal/jobs"
	"github.com/ytget/yt-downloader-api/internal/model"
)

// Options configures the service
type Options struct {
	MaxParallel int
	QueueSize   int
	// JobTimeout bounds a single job run; zero means no limit
	JobTimeout time.Duration
	Logger     logrus.FieldLogger
}

// Stats combines pool counters with per-status job counts
type Stats struct {
	Pool PoolMetrics             `json:"pool"`
	Jobs map[model.JobStatus]int `json:"jobs"`
	// Total is the number of jobs in the registry
	Total int `json:"total"`
	// Running is the number of jobs holding a cancel handle
	Running int `json:"running"`
}

// CancelledMessage is the error recorded for a cancelled job
const CancelledMessage = "job cancelled"

// Service handles download operations
type Service struct {
	registry   *jobs.Registry
	engine     Engine
	pool       *Pool
	log        logrus.FieldLogger
	jobTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	cancels      map[string]context.CancelFunc
	cancelsMutex sync.Mutex
}

// NewService creates a service and starts its worker pool
func NewService(registry *jobs.Registry, engine Engine, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		registry:   registry,
		engine:     engine,
		pool:       NewPool(opts.MaxParallel, opts.QueueSize),
		log:        logger.WithField("component", "download"),
		jobTimeout: opts.JobTimeout,
		ctx:        ctx,
		cancel:     cancel,
		cancels:    make(map[string]context.CancelFunc),
	}
	s.pool.Start()
	return s
}

// Registry returns the job registry the service writes to
func (s *Service) Registry() *jobs.Registry {
	return s.registry
}

// Submit creates a job of the given kind and schedules op for it. The returned
// id is valid even when err is non-nil: a job the pool refused is recorded as
// failed.
func (s *Service) Submit(kind model.JobKind, op Operation) (string, error) {
	id := s.registry.Create(kind)
	log := s.log.WithFields(logrus.Fields{"job_id": id, "kind": kind})

	if err := s.pool.Submit(s.wrap(id, log, op)); err != nil {
		s.update(id, log, jobs.Update{
			Status: model.JobStatusFailed,
			Error:  fmt.Sprintf("failed to schedule job: %v", err),
		})
		log.WithError(err).Warn("Job rejected by worker pool")
		return id, fmt.Errorf("submit job %s: %w", id, err)
	}

	log.Info("Job queued")
	return id, nil
}

// SubmitDownload queues a media download for req
func (s *Service) SubmitDownload(req model.DownloadRequest) (string, error) {
	req = req.WithDefaults()
	return s.Submit(req.Kind(), func(ctx context.Context, jobID string, report model.ProgressFunc) (map[string]any, error) {
		return s.engine.Download(ctx, jobID, req, report)
	})
}

// FetchMetadata asks the engine to describe url. No job is created.
func (s *Service) FetchMetadata(ctx context.Context, url string) (*model.MediaInfo, error) {
	info, err := s.engine.FetchMetadata(ctx, url)
	if err != nil {
		var metaErr *model.MetadataError
		if !errors.As(err, &metaErr) {
			err = &model.MetadataError{URL: url, Err: err}
		}
		s.log.WithFields(logrus.Fields{"url": url, "error": err}).Warn("Metadata fetch failed")
		return nil, err
	}
	return info, nil
}

// Stats returns pool and registry counters
func (s *Service) Stats() Stats {
	return Stats{
		Pool:    s.pool.Metrics(),
		Jobs:    s.registry.Stats(),
		Total:   s.registry.Len(),
		Running: s.Running(),
	}
}

// Cancel stops a job. A queued job is failed right away and never runs; a
// running job has its context cancelled and fails once its operation returns.
func (s *Service) Cancel(id string) error {
	job, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	if job.Status.IsFinished() {
		return fmt.Errorf("%w: job %s is already %s", jobs.ErrInvalidTransition, id, job.Status)
	}

	log := s.log.WithField("job_id", id)
	if !job.Status.IsActive() {
		err := s.registry.Update(id, jobs.Update{Status: model.JobStatusFailed, Error: CancelledMessage})
		if err == nil {
			log.Info("Queued job cancelled")
			// the worker may have picked it up meanwhile
			s.cancelTracked(id)
			return nil
		}
		if !errors.Is(err, jobs.ErrInvalidTransition) {
			return err
		}
	}

	if !s.cancelTracked(id) {
		return fmt.Errorf("%w: job %s is not running", jobs.ErrInvalidTransition, id)
	}
	log.Info("Running job cancelled")
	return nil
}

func (s *Service) cancelTracked(id string) bool {
	s.cancelsMutex.Lock()
	cancel, ok := s.cancels[id]
	s.cancelsMutex.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Shutdown cancels running and queued jobs and waits for the workers to exit
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	if err := s.pool.Stop(ctx); err != nil {
		return fmt.Errorf("shutdown download service: %w", err)
	}
	return nil
}

// wrap turns op into a pool task that drives the job through its lifecycle
func (s *Service) wrap(id string, log logrus.FieldLogger, op Operation) Task {
	return func() error {
		ctx, cancel := s.jobContext()
		defer cancel()
		s.track(id, cancel)
		defer s.untrack(id)

		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("job cancelled before start: %w", err)
			s.fail(id, log, err)
			return err
		}

		if err := s.registry.Update(id, jobs.Update{Status: model.JobStatusProcessing, Progress: jobs.Progress(0)}); err != nil {
			log.WithError(err).Info("Job skipped")
			return nil
		}
		log.Info("Job started")

		result, err := s.invoke(ctx, id, op, s.reporter(id, log))
		if err != nil {
			s.fail(id, log, err)
			return err
		}

		s.update(id, log, jobs.Update{
			Status:   model.JobStatusCompleted,
			Progress: jobs.Progress(jobs.MaxProgress),
			Payload:  result,
		})
		log.Info("Job completed")
		return nil
	}
}

// invoke runs op and converts a panic into an error
func (s *Service) invoke(ctx context.Context, id string, op Operation, report model.ProgressFunc) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return op(ctx, id, report)
}

// reporter returns the progress callback handed to an operation
func (s *Service) reporter(id string, log logrus.FieldLogger) model.ProgressFunc {
	return func(percent float64, partial map[string]any) {
		u := jobs.Update{Payload: partial}
		if percent >= 0 {
			u.Progress = jobs.Progress(percent)
		}
		if u.Progress == nil && len(u.Payload) == 0 {
			return
		}
		s.update(id, log, u)
	}
}

func (s *Service) fail(id string, log logrus.FieldLogger, err error) {
	s.update(id, log, jobs.Update{Status: model.JobStatusFailed, Error: err.Error()})
	log.WithError(err).Error("Job failed")
}

// update applies u and logs rejected updates; it never fails the caller
func (s *Service) update(id string, log logrus.FieldLogger, u jobs.Update) {
	if err := s.registry.Update(id, u); err != nil {
		log.WithError(err).Debug("Job update ignored")
	}
}

func (s *Service) jobContext() (context.Context, context.CancelFunc) {
	if s.jobTimeout > 0 {
		return context.WithTimeout(s.ctx, s.jobTimeout)
	}
	return context.WithCancel(s.ctx)
}

func (s *Service) track(id string, cancel context.CancelFunc) {
	s.cancelsMutex.Lock()
	s.cancels[id] = cancel
	s.cancelsMutex.Unlock()
}

func (s *Service) untrack(id string) {
	s.cancelsMutex.Lock()
	delete(s.cancels, id)
	s.cancelsMutex.Unlock()
}

// Running returns the number of jobs currently executing
func (s *Service) Running() int {
	s.cancelsMutex.Lock()
	defer s.cancelsMutex.Unlock()
	return len(s.cancels)
}
