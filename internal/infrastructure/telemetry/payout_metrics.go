package telemetry

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// LedgerStatsProvider reads ledger state for the periodic gauges
type LedgerStatsProvider interface {
	// PayoutCountsByStatus returns the number of payouts per status
	PayoutCountsByStatus(ctx context.Context) (map[string]int64, error)
	// OpenCommissionByStatus returns unpaid commission in minor units per
	// entry status and currency
	OpenCommissionByStatus(ctx context.Context) ([]CommissionBalance, error)
}

// CommissionBalance is the unpaid commission of one status and currency
type CommissionBalance struct {
	Status   string
	Currency string
	Amount   int64
}

// PayoutMetricsConfig holds configuration for the ledger metrics.
type PayoutMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
	Stats  LedgerStatsProvider
}

// PayoutMetrics counts ledger activity. It is fed by domain events from the
// outbox, by scheduled job outcomes and by executor calls.
type PayoutMetrics struct {
	logger *zap.Logger
	stats  LedgerStatsProvider

	payoutsCreated     *Counter
	payoutsCompleted   *Counter
	payoutAmountPaid   *Counter
	payoutsFailed      *Counter
	payoutsCancelled   *Counter
	commissionsAccrued *Counter
	commissionAmount   *Counter
	disputes           *Counter
	reversals          *Counter
	executorCalls      *Histogram
	jobDuration        *Histogram
	jobItems           *Counter

	payoutsByStatus *Gauge
	openCommission  *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// NewPayoutMetrics creates the ledger instruments.
func NewPayoutMetrics(cfg PayoutMetricsConfig) (*PayoutMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &PayoutMetrics{logger: logger, stats: cfg.Stats, stopChan: make(chan struct{})}

	in := NewInstruments(cfg.Meter)
	m.payoutsCreated = in.Counter("payouts_created_total", "Payout batches created", "{payout}")
	m.payoutsCompleted = in.Counter("payouts_completed_total", "Payouts confirmed by the executor", "{payout}")
	m.payoutAmountPaid = in.Counter("payout_paid_amount_total", "Net amount paid out in minor units", "{minor_unit}")
	m.payoutsFailed = in.Counter("payouts_failed_total", "Payout transfer failures", "{payout}")
	m.payoutsCancelled = in.Counter("payouts_cancelled_total", "Payouts cancelled before completion", "{payout}")
	m.commissionsAccrued = in.Counter("commissions_accrued_total", "Commission entries accrued", "{entry}")
	m.commissionAmount = in.Counter("commission_accrued_amount_total", "Commission accrued in minor units", "{minor_unit}")
	m.disputes = in.Counter("commission_disputes_total", "Commission disputes by outcome", "{entry}")
	m.reversals = in.Counter("commission_reversals_total", "Reversal entries appended", "{entry}")
	m.jobItems = in.Counter("payout_job_items_total", "Items processed by scheduled jobs", "{item}")
	m.executorCalls = in.Histogram("payout_executor_call_duration_seconds", "Latency of payout executor calls", "s", ExecutorDurationBuckets)
	m.jobDuration = in.Histogram("payout_job_duration_seconds", "Duration of scheduled ledger jobs", "s", JobDurationBuckets)
	m.payoutsByStatus = in.Gauge("payouts_by_status", "Payouts currently in each status", "{payout}")
	m.openCommission = in.Gauge("commission_open_amount", "Unpaid commission in minor units", "{minor_unit}")
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// EventTypes implements shared.EventHandler
func (m *PayoutMetrics) EventTypes() []string {
	return []string{
		finance.EventTypePayoutCreated,
		finance.EventTypePayoutCompleted,
		finance.EventTypePayoutFailed,
		finance.EventTypePayoutCancelled,
		finance.EventTypeCommissionAccrued,
		finance.EventTypeCommissionDisputed,
		finance.EventTypeCommissionReversed,
	}
}

// Handle implements shared.EventHandler. Unknown events are ignored.
func (m *PayoutMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *finance.PayoutCreatedEvent:
		m.payoutsCreated.Inc(ctx)
	case *finance.PayoutCompletedEvent:
		m.payoutsCompleted.Inc(ctx, AttrCurrency.String(e.Currency))
		m.payoutAmountPaid.Add(ctx, e.NetAmount, AttrCurrency.String(e.Currency))
	case *finance.PayoutFailedEvent:
		m.payoutsFailed.Inc(ctx,
			AttrFailureCode.String(e.FailureCode),
			AttrPermanent.String(strconv.FormatBool(e.Permanent)),
		)
	case *finance.PayoutCancelledEvent:
		m.payoutsCancelled.Inc(ctx)
	case *finance.CommissionAccruedEvent:
		m.commissionsAccrued.Inc(ctx, AttrCurrency.String(e.Currency))
		m.commissionAmount.Add(ctx, e.CommissionAmount, AttrCurrency.String(e.Currency))
	case *finance.CommissionDisputedEvent:
		outcome := "disputed"
		if e.Deferred {
			outcome = "deferred"
		}
		m.disputes.Inc(ctx, AttrOutcome.String(outcome))
	case *finance.CommissionReversedEvent:
		m.reversals.Inc(ctx)
	}
	return nil
}

// RecordJob records a finished scheduled job
func (m *PayoutMetrics) RecordJob(ctx context.Context, jobType string, processed int, duration time.Duration, err error) {
	outcome := AttrOutcome.String(outcomeOf(err))
	m.jobDuration.RecordDuration(ctx, duration, AttrJobType.String(jobType), outcome)
	if processed > 0 {
		m.jobItems.Add(ctx, int64(processed), AttrJobType.String(jobType))
	}
}

// RecordExecutorCall records one call to the payout executor
func (m *PayoutMetrics) RecordExecutorCall(ctx context.Context, operation string, duration time.Duration, err error) {
	m.executorCalls.RecordDuration(ctx, duration,
		AttrExecutorOp.String(operation),
		AttrOutcome.String(outcomeOf(err)),
	)
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// StartPeriodicCollection samples ledger gauges every interval until Stop.
func (m *PayoutMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if m.stats == nil {
		return
	}
	m.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go m.runPeriodicCollection(ctx, interval)
	})
}

func (m *PayoutMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.CollectLedgerGauges(ctx)
	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CollectLedgerGauges(ctx)
		}
	}
}

// CollectLedgerGauges samples payout and commission balances once
func (m *PayoutMetrics) CollectLedgerGauges(ctx context.Context) {
	if m.stats == nil {
		return
	}
	counts, err := m.stats.PayoutCountsByStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect payout counts", zap.Error(err))
	} else {
		for _, status := range finance.AllPayoutStatuses() {
			m.payoutsByStatus.Record(ctx, counts[status.String()], AttrPayoutStatus.String(status.String()))
		}
	}

	balances, err := m.stats.OpenCommissionByStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect open commission", zap.Error(err))
		return
	}
	for _, b := range balances {
		m.openCommission.Record(ctx, b.Amount, AttrEntryStatus.String(b.Status), AttrCurrency.String(b.Currency))
	}
}

// Stop stops the periodic collection.
func (m *PayoutMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}
