package payoutexec

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/infrastructure/logger"
	"github.com/marketplace/payouts/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const spanScope = "payout_executor"

// CallRecorder receives the latency of executor calls
type CallRecorder interface {
	RecordExecutorCall(ctx context.Context, operation string, duration time.Duration, err error)
}

// TracedExecutor wraps every executor call in a client span and reports its
// latency. Bank details never reach span attributes.
type TracedExecutor struct {
	next     finance.PayoutExecutor
	recorder CallRecorder
	logger   *zap.Logger
}

// NewTracedExecutor wraps next. recorder may be nil.
func NewTracedExecutor(next finance.PayoutExecutor, recorder CallRecorder, logger *zap.Logger) *TracedExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TracedExecutor{next: next, recorder: recorder, logger: logger}
}

// Transfer implements finance.PayoutExecutor
func (e *TracedExecutor) Transfer(ctx context.Context, req finance.TransferRequest) (finance.TransferResult, error) {
	return e.call(ctx, "transfer", []attribute.KeyValue{
		telemetry.ID(telemetry.SpanPayoutID, req.PayoutID),
		telemetry.ID(telemetry.SpanVendorID, req.VendorID),
		telemetry.SpanNetAmount.Int64(req.NetAmount),
		telemetry.SpanCurrency.String(req.Currency.String()),
	}, func(ctx context.Context) (finance.TransferResult, error) {
		return e.next.Transfer(ctx, req)
	})
}

// Status implements finance.PayoutExecutor
func (e *TracedExecutor) Status(ctx context.Context, payoutID uuid.UUID) (finance.TransferResult, error) {
	return e.call(ctx, "status", []attribute.KeyValue{
		telemetry.ID(telemetry.SpanPayoutID, payoutID),
	}, func(ctx context.Context) (finance.TransferResult, error) {
		return e.next.Status(ctx, payoutID)
	})
}

func (e *TracedExecutor) call(
	ctx context.Context,
	operation string,
	attrs []attribute.KeyValue,
	fn func(context.Context) (finance.TransferResult, error),
) (finance.TransferResult, error) {
	ctx, span := telemetry.StartSpan(ctx, spanScope, operation, trace.SpanKindClient, attrs...)
	start := time.Now()
	result, err := fn(ctx)
	elapsed := time.Since(start)

	if e.recorder != nil {
		e.recorder.RecordExecutorCall(ctx, operation, elapsed, err)
	}
	span.SetAttributes(outcomeAttributes(result, err)...)
	if err != nil {
		logger.WithLogger(ctx, e.logger).Warn("Payout executor call failed",
			zap.String("operation", operation),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
	}
	telemetry.End(span, err)
	return result, err
}

func outcomeAttributes(result finance.TransferResult, err error) []attribute.KeyValue {
	if err != nil {
		var execErr *finance.ExecutorError
		if errors.As(err, &execErr) {
			return []attribute.KeyValue{telemetry.SpanFailureCode.String(execErr.Code)}
		}
		return nil
	}
	attrs := []attribute.KeyValue{
		telemetry.SpanReference.String(result.Reference),
		telemetry.SpanTransfer.String(string(result.Status)),
	}
	if result.FailureCode != "" {
		attrs = append(attrs, telemetry.SpanFailureCode.String(result.FailureCode))
	}
	return attrs
}

var _ finance.PayoutExecutor = (*TracedExecutor)(nil)
