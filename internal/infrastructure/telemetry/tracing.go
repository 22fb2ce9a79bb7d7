package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of ledger spans
const TracerName = "marketplace-payouts"

// Span attribute keys. Bank details have no key on purpose and must never be
// attached to a span.
var (
	SpanPayoutID    = attribute.Key("payout.id")
	SpanVendorID    = attribute.Key("vendor.id")
	SpanEntryID     = attribute.Key("commission_entry.id")
	SpanNetAmount   = attribute.Key("payout.net_amount")
	SpanCurrency    = attribute.Key("payout.currency")
	SpanAttempt     = attribute.Key("payout.attempt")
	SpanReference   = attribute.Key("payout.executor_reference")
	SpanFailureCode = attribute.Key("payout.failure_code")
	SpanTransfer    = attribute.Key("payout.transfer_status")
)

// ID renders a uuid attribute under key.
func ID(key attribute.Key, id uuid.UUID) attribute.KeyValue {
	return key.String(id.String())
}

// StartSpan starts a span named scope.operation on the global tracer. The
// caller ends it, normally through End.
func StartSpan(ctx context.Context, scope, operation string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, scope+"."+operation,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
}

// End sets the span status from err and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
