package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DueVendorProvider lists vendors whose payout period has closed
type DueVendorProvider interface {
	DueVendors(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
}

// JobSubmitter accepts jobs for execution
type JobSubmitter interface {
	Schedule(jobType JobType, vendorID *uuid.UUID, asOf time.Time) (*Job, error)
}

// CronTriggerConfig sets when jobs are submitted. A zero interval disables
// its job.
type CronTriggerConfig struct {
	// BatchHour and BatchMinute give the daily batch time in UTC
	BatchHour   int
	BatchMinute int
	// CheckInterval is how often the clock is compared with the batch time
	CheckInterval time.Duration

	AgingInterval     time.Duration
	RetryInterval     time.Duration
	ReconcileInterval time.Duration
}

func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		BatchHour:         2,
		CheckInterval:     time.Minute,
		AgingInterval:     time.Hour,
		RetryInterval:     10 * time.Minute,
		ReconcileInterval: 15 * time.Minute,
	}
}

// CronTrigger submits the daily payout batch, one job per due vendor, and the
// periodic maintenance jobs
type CronTrigger struct {
	cfg       CronTriggerConfig
	submitter JobSubmitter
	vendors   DueVendorProvider
	log       *zap.Logger
	now       func() time.Time

	stop    context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	lastDay string
}

func NewCronTrigger(cfg CronTriggerConfig, submitter JobSubmitter, vendors DueVendorProvider, log *zap.Logger) *CronTrigger {
	return &CronTrigger{
		cfg:       cfg,
		submitter: submitter,
		vendors:   vendors,
		log:       log.Named("cron"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start launches one loop per enabled schedule. Starting twice is a no-op.
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true
	ctx, c.stop = context.WithCancel(ctx)

	c.every(ctx, c.cfg.CheckInterval, c.checkAndTrigger)
	for jobType, interval := range map[JobType]time.Duration{
		JobTypeCommissionAging: c.cfg.AgingInterval,
		JobTypePayoutRetry:     c.cfg.RetryInterval,
		JobTypePayoutReconcile: c.cfg.ReconcileInterval,
	} {
		c.every(ctx, interval, func(context.Context) { c.submit(jobType) })
	}

	c.log.Info("Cron trigger started",
		zap.Int("batch_hour", c.cfg.BatchHour),
		zap.Int("batch_minute", c.cfg.BatchMinute),
		zap.Duration("aging_interval", c.cfg.AgingInterval),
		zap.Duration("retry_interval", c.cfg.RetryInterval),
		zap.Duration("reconcile_interval", c.cfg.ReconcileInterval),
	)
	return nil
}

func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	c.stop()
	if err := waitStopped(ctx, &c.wg); err != nil {
		return err
	}
	c.log.Info("Cron trigger stopped")
	return nil
}

// every runs tick on its own goroutine each interval until ctx is done
func (c *CronTrigger) every(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	if interval <= 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()
}

// checkAndTrigger runs the daily batch once per UTC day at the batch time
func (c *CronTrigger) checkAndTrigger(ctx context.Context) {
	now := c.now()
	if now.Hour() != c.cfg.BatchHour || now.Minute() != c.cfg.BatchMinute {
		return
	}
	day := now.Format(time.DateOnly)
	c.mu.Lock()
	if c.lastDay == day {
		c.mu.Unlock()
		return
	}
	c.lastDay = day
	c.mu.Unlock()

	queued, err := c.TriggerBatch(ctx, now)
	if err != nil {
		c.log.Error("Daily payout batch failed", zap.Int("queued", queued), zap.Error(err))
	}
}

// TriggerBatch submits one payout batch job per due vendor and returns how
// many were queued. Vendors whose batch is still held are skipped.
func (c *CronTrigger) TriggerBatch(ctx context.Context, asOf time.Time) (int, error) {
	due, err := c.vendors.DueVendors(ctx, asOf)
	if err != nil {
		return 0, err
	}
	c.log.Info("Scheduling payout batches", zap.Int("vendor_count", len(due)))

	queued := 0
	for _, vendorID := range due {
		_, err := c.submitter.Schedule(JobTypePayoutBatch, &vendorID, asOf)
		switch {
		case err == nil:
			queued++
		case errors.Is(err, ErrJobAlreadyQueued):
		case errors.Is(err, ErrSchedulerNotRunning):
			return queued, err
		default:
			c.log.Error("Failed to schedule payout batch",
				zap.String("vendor_id", vendorID.String()),
				zap.Error(err),
			)
		}
	}
	return queued, nil
}

// TriggerNow submits a maintenance job outside its interval. Batches go
// through TriggerBatch.
func (c *CronTrigger) TriggerNow(jobType JobType) (*Job, error) {
	if jobType == JobTypePayoutBatch {
		return nil, ErrMissingVendor
	}
	return c.submitter.Schedule(jobType, nil, c.now())
}

func (c *CronTrigger) submit(jobType JobType) {
	_, err := c.TriggerNow(jobType)
	switch {
	case err == nil:
	case errors.Is(err, ErrJobAlreadyQueued):
		c.log.Debug("Job still held, skipping tick", zap.String("job_type", string(jobType)))
	default:
		c.log.Warn("Failed to schedule job", zap.String("job_type", string(jobType)), zap.Error(err))
	}
}
