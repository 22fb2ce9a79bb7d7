package event

import (
	"context"
	"sync"
	"time"

	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

// OutboxProcessorConfig tunes the outbox relay
type OutboxProcessorConfig struct {
	// BatchSize is the most entries claimed per round. A full batch is
	// followed immediately by another round, so backlogs drain without
	// waiting for the next tick.
	BatchSize    int
	PollInterval time.Duration
	Backoff      shared.OutboxBackoff
	// Retention is how long relayed entries are kept. Zero keeps them forever.
	Retention       time.Duration
	CleanupInterval time.Duration
	// StaleAfter is how long an entry may stay claimed before it is handed out again
	StaleAfter time.Duration
}

// DefaultOutboxProcessorConfig returns the relay defaults
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:       100,
		PollInterval:    5 * time.Second,
		Backoff:         shared.DefaultOutboxBackoff,
		Retention:       7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
		StaleAfter:      10 * time.Minute,
	}
}

// OutboxProcessor relays committed outbox entries to the event bus: statement
// archiving, operator notices and payout metrics all run from here
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a relay. Call Start to run it in the background.
func NewOutboxProcessor(repo shared.OutboxRepository, bus shared.EventPublisher, serializer *EventSerializer, config OutboxProcessorConfig, logger *zap.Logger) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultOutboxProcessorConfig().BatchSize
	}
	return &OutboxProcessor{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		config:     config,
		logger:     logger.Named("outbox"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the relay loop and, when a retention is set, the cleanup loop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.every(ctx, p.config.PollInterval, p.ProcessOnce)
	if p.config.CleanupInterval > 0 {
		p.wg.Add(1)
		go p.every(ctx, p.config.CleanupInterval, p.cleanup)
	}
	return nil
}

// Stop cancels the loops and waits for the current round to finish or ctx to expire
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer p.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// ProcessOnce relays due entries until fewer than a full batch is left
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) {
	for ctx.Err() == nil {
		claimed, err := p.repo.ClaimDue(ctx, p.now(), p.config.BatchSize)
		if err != nil {
			p.logger.Error("Failed to claim outbox entries", zap.Error(err))
			return
		}
		for _, entry := range claimed {
			p.relay(ctx, entry)
		}
		if len(claimed) < p.config.BatchSize {
			return
		}
	}
}

func (p *OutboxProcessor) relay(ctx context.Context, entry *shared.OutboxEntry) {
	log := p.logger.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_type", entry.AggregateType),
		zap.String("aggregate_id", entry.AggregateID.String()),
	)

	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	switch {
	case err != nil:
		// Retrying cannot fix a payload this build does not understand
		entry.MarkDead(err.Error(), p.now())
		log.Error("Outbox entry cannot be decoded, dead-lettered", zap.Error(err))
	default:
		if err := p.bus.Publish(ctx, event); err != nil {
			entry.MarkFailed(err.Error(), p.now(), p.config.Backoff)
			if entry.IsDead() {
				log.Warn("Outbox entry dead-lettered",
					zap.Int("attempts", entry.RetryCount),
					zap.String("last_error", entry.LastError),
				)
			} else {
				log.Warn("Outbox relay failed, will retry",
					zap.Int("attempt", entry.RetryCount),
					zap.Timep("next_retry_at", entry.NextRetryAt),
					zap.Error(err),
				)
			}
		} else {
			entry.MarkSent(p.now())
		}
	}

	if err := p.repo.Update(ctx, entry); err != nil {
		log.Error("Failed to record outbox delivery state",
			zap.String("status", string(entry.Status)),
			zap.Error(err),
		)
	}
}

// cleanup requeues abandoned claims and purges old relayed entries
func (p *OutboxProcessor) cleanup(ctx context.Context) {
	now := p.now()
	if p.config.StaleAfter > 0 {
		requeued, err := p.repo.RequeueStale(ctx, now.Add(-p.config.StaleAfter))
		switch {
		case err != nil:
			p.logger.Error("Failed to requeue stale outbox claims", zap.Error(err))
		case requeued > 0:
			p.logger.Warn("Requeued stale outbox claims", zap.Int64("count", requeued))
		}
	}

	if p.config.Retention <= 0 {
		return
	}
	cutoff := now.Add(-p.config.Retention)
	purged, err := p.repo.PurgeSent(ctx, cutoff)
	switch {
	case err != nil:
		p.logger.Error("Failed to purge relayed outbox entries", zap.Error(err))
	case purged > 0:
		p.logger.Info("Purged relayed outbox entries", zap.Int64("count", purged), zap.Time("cutoff", cutoff))
	}
}
