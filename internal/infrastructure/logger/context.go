package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RequestIDField is the log field, and gin context key, holding the request id
const RequestIDField = "request_id"

type scopeKey struct{}

// scope is what a context carries for logging: the request-scoped logger and
// the ids already attached to it
type scope struct {
	logger    *zap.Logger
	requestID string
	vendorID  string
	payoutID  string
}

func scopeOf(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// WithContext stores l as the context's logger
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	s := scopeOf(ctx)
	s.logger = l
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the context's logger, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l := scopeOf(ctx).logger; l != nil {
		return l
	}
	return zap.NewNop()
}

// WithRequestID records the request id and returns l with a request_id field
func WithRequestID(ctx context.Context, l *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return enrich(ctx, l, RequestIDField, requestID, func(s *scope) { s.requestID = requestID })
}

// WithVendorID records the vendor the work is for
func WithVendorID(ctx context.Context, l *zap.Logger, vendorID string) (context.Context, *zap.Logger) {
	return enrich(ctx, l, "vendor_id", vendorID, func(s *scope) { s.vendorID = vendorID })
}

// WithPayoutID records the payout the work is for
func WithPayoutID(ctx context.Context, l *zap.Logger, payoutID string) (context.Context, *zap.Logger) {
	return enrich(ctx, l, "payout_id", payoutID, func(s *scope) { s.payoutID = payoutID })
}

func enrich(ctx context.Context, l *zap.Logger, key, value string, set func(*scope)) (context.Context, *zap.Logger) {
	s := scopeOf(ctx)
	set(&s)
	s.logger = l.With(zap.String(key, value))
	return context.WithValue(ctx, scopeKey{}, s), s.logger
}

// RequestID returns the request id recorded in ctx
func RequestID(ctx context.Context) string { return scopeOf(ctx).requestID }

// VendorID returns the vendor id recorded in ctx
func VendorID(ctx context.Context) string { return scopeOf(ctx).vendorID }

// PayoutID returns the payout id recorded in ctx
func PayoutID(ctx context.Context) string { return scopeOf(ctx).payoutID }

// TraceFields returns trace_id and span_id of the active span, or nothing
// when ctx carries no valid span
func TraceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// WithLogger decorates a component logger, one that did not come from ctx,
// with the ids and trace recorded in ctx. GORM statement logs use it.
func WithLogger(ctx context.Context, l *zap.Logger) *zap.Logger {
	s := scopeOf(ctx)
	fields := TraceFields(ctx)
	for _, f := range []struct{ key, value string }{
		{RequestIDField, s.requestID},
		{"vendor_id", s.vendorID},
		{"payout_id", s.payoutID},
	} {
		if f.value != "" {
			fields = append(fields, zap.String(f.key, f.value))
		}
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
