package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// JobExecutor runs a job and reports how many items it processed
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) (processed int, err error)
}

// Config sizes the worker pool
type Config struct {
	Workers     int
	QueueSize   int
	HistorySize int
	JobTimeout  time.Duration
	// RetryAttempts failed runs are retried after RetryDelay
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultConfig returns the pool settings used when config leaves them unset
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		QueueSize:     1000,
		HistorySize:   200,
		JobTimeout:    10 * time.Minute,
		RetryAttempts: 2,
		RetryDelay:    time.Minute,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	case c.JobTimeout <= 0:
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	case c.RetryAttempts < 0 || c.RetryDelay < 0:
		return fmt.Errorf("%w: retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Scheduler runs maintenance jobs on a bounded worker pool. A job key (type,
// plus vendor for batches) is held from Schedule until the job succeeds or
// runs out of retries, so a slow batch is never queued twice.
type Scheduler struct {
	cfg  Config
	exec JobExecutor
	log  *zap.Logger
	now  func() time.Time

	queue chan *Job
	stop  context.CancelFunc
	wg    sync.WaitGroup

	mu      sync.Mutex
	running bool
	held    map[string]uuid.UUID
	timers  map[uuid.UUID]*time.Timer
	history *jobLog
}

func NewScheduler(cfg Config, exec JobExecutor, log *zap.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:     cfg,
		exec:    exec,
		log:     log.Named("scheduler"),
		now:     func() time.Time { return time.Now().UTC() },
		queue:   make(chan *Job, cfg.QueueSize),
		held:    make(map[string]uuid.UUID),
		timers:  make(map[uuid.UUID]*time.Timer),
		history: newJobLog(cfg.HistorySize),
	}, nil
}

// Start launches the workers. Starting twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	ctx, s.stop = context.WithCancel(ctx)
	for id := range s.cfg.Workers {
		s.wg.Add(1)
		go s.work(ctx, id)
	}
	s.log.Info("Scheduler started",
		zap.Int("workers", s.cfg.Workers),
		zap.Duration("job_timeout", s.cfg.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs, drops pending retries and waits for the workers
// until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	close(s.queue)
	s.mu.Unlock()

	s.stop()
	if err := waitStopped(ctx, &s.wg); err != nil {
		s.log.Warn("Scheduler stop timed out")
		return err
	}
	s.log.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Schedule queues a job with the configured retry budget. It fails with
// ErrJobAlreadyQueued while a job of the same key is held.
func (s *Scheduler) Schedule(jobType JobType, vendorID *uuid.UUID, asOf time.Time) (*Job, error) {
	if !jobType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, jobType)
	}
	if jobType == JobTypePayoutBatch && vendorID == nil {
		return nil, ErrMissingVendor
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, ErrSchedulerNotRunning
	}
	job := newJob(jobType, vendorID, asOf, s.cfg.RetryAttempts, s.now())
	if _, busy := s.held[job.key()]; busy {
		return nil, ErrJobAlreadyQueued
	}
	if !s.offer(job) {
		return nil, ErrJobQueueFull
	}
	s.held[job.key()] = job.ID
	s.history.record(job)

	s.log.Debug("Job queued", zap.String("job_id", job.ID.String()), zap.String("job_type", string(job.Type)))
	return job.snapshot(), nil
}

// offer sends without blocking; the caller holds s.mu
func (s *Scheduler) offer(job *Job) bool {
	select {
	case s.queue <- job:
		return true
	default:
		return false
	}
}

func (s *Scheduler) work(ctx context.Context, worker int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.queue:
			if !ok {
				return
			}
			s.run(ctx, job, worker)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job *Job, worker int) {
	log := s.log.With(
		zap.Int("worker", worker),
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
	)
	if job.VendorID != nil {
		// statement logs of the job carry the vendor too
		ctx, log = logger.WithVendorID(ctx, log, job.VendorID.String())
	}
	s.update(job, func(j *Job) { j.begin(s.now()) })

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	processed, err := s.exec.Execute(jobCtx, job.snapshot())
	cancel()

	if err == nil {
		s.update(job, func(j *Job) { j.succeed(s.now(), processed) })
		s.release(job)
		log.Info("Job succeeded", zap.Int("processed", processed))
		return
	}

	s.update(job, func(j *Job) { j.fail(s.now(), err) })
	log.Error("Job failed", zap.Int("retries", job.Retries), zap.Error(err))
	if ctx.Err() != nil || !job.retriesLeft() {
		s.release(job)
		return
	}
	s.update(job, func(j *Job) { j.awaitRetry(s.now().Add(s.cfg.RetryDelay)) })
	s.requeueAfter(job, s.cfg.RetryDelay)
}

// update applies change to job and records the result
func (s *Scheduler) update(job *Job, change func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	change(job)
	s.history.record(job)
}

// release frees the job's key unless a newer job took it
func (s *Scheduler) release(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[job.key()] == job.ID {
		delete(s.held, job.key())
	}
}

// requeueAfter puts job back on the queue once delay elapsed. The key stays
// held meanwhile.
func (s *Scheduler) requeueAfter(job *Job, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		delete(s.held, job.key())
		return
	}
	s.timers[job.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.timers, job.ID)
		if !s.running {
			delete(s.held, job.key())
			return
		}
		if !s.offer(job) {
			delete(s.held, job.key())
			s.log.Warn("Retry dropped, queue full", zap.String("job_id", job.ID.String()))
		}
	})
}

// JobHistory returns the latest state of recent jobs, newest first. A
// non-positive limit returns everything kept.
func (s *Scheduler) JobHistory(limit int) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.newest(limit)
}

// FindJob returns the latest recorded state of a job
func (s *Scheduler) FindJob(id uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.history.find(id); ok {
		return job, nil
	}
	return nil, ErrJobNotFound
}

// jobLog keeps snapshots of the most recently queued jobs, one per job id.
// Not safe for concurrent use.
type jobLog struct {
	limit int
	order []uuid.UUID
	byID  map[uuid.UUID]*Job
}

func newJobLog(limit int) *jobLog {
	return &jobLog{limit: limit, byID: make(map[uuid.UUID]*Job)}
}

func (l *jobLog) record(job *Job) {
	if _, seen := l.byID[job.ID]; !seen {
		l.order = append(l.order, job.ID)
		if l.limit > 0 && len(l.order) > l.limit {
			delete(l.byID, l.order[0])
			l.order = l.order[1:]
		}
	}
	l.byID[job.ID] = job.snapshot()
}

func (l *jobLog) newest(limit int) []*Job {
	if limit <= 0 || limit > len(l.order) {
		limit = len(l.order)
	}
	out := make([]*Job, 0, limit)
	for i := len(l.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.byID[l.order[i]].snapshot())
	}
	return out
}

func (l *jobLog) find(id uuid.UUID) (*Job, bool) {
	job, ok := l.byID[id]
	if !ok {
		return nil, false
	}
	return job.snapshot(), true
}

// waitStopped waits for wg or gives up when ctx is done
func waitStopped(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
