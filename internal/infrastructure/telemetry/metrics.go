package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Instruments creates instruments on one meter and collects creation
// errors, so a group can be declared without checking each one. A failed
// instrument is replaced by a no-op and reported by Err.
type Instruments struct {
	meter metric.Meter
	errs  []error
}

// NewInstruments starts an instrument group on meter.
func NewInstruments(meter metric.Meter) *Instruments {
	return &Instruments{meter: meter}
}

func (in *Instruments) fail(name string, err error) {
	in.errs = append(in.errs, fmt.Errorf("instrument %s: %w", name, err))
}

// Err reports every instrument that could not be created.
func (in *Instruments) Err() error {
	return errors.Join(in.errs...)
}

// Counter is a monotonic int64 sum.
type Counter struct {
	inst metric.Int64Counter
}

// Counter declares a monotonic counter.
func (in *Instruments) Counter(name, description, unit string) *Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail(name, err)
		return &Counter{inst: noop.Int64Counter{}}
	}
	return &Counter{inst: c}
}

func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.inst.Add(ctx, n, metric.WithAttributes(attrs...))
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram is a float64 distribution, seconds for durations.
type Histogram struct {
	inst metric.Float64Histogram
}

// Histogram declares a histogram; empty bounds keep the SDK defaults.
func (in *Instruments) Histogram(name, description, unit string, bounds []float64) *Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	if err != nil {
		in.fail(name, err)
		return &Histogram{inst: noop.Float64Histogram{}}
	}
	return &Histogram{inst: h}
}

func (h *Histogram) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	h.inst.Record(ctx, v, metric.WithAttributes(attrs...))
}

func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), attrs...)
}

// Gauge holds the last recorded int64 per attribute set.
type Gauge struct {
	inst metric.Int64Gauge
}

// Gauge declares a synchronous gauge.
func (in *Instruments) Gauge(name, description, unit string) *Gauge {
	g, err := in.meter.Int64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail(name, err)
		return &Gauge{inst: noop.Int64Gauge{}}
	}
	return &Gauge{inst: g}
}

func (g *Gauge) Record(ctx context.Context, v int64, attrs ...attribute.KeyValue) {
	g.inst.Record(ctx, v, metric.WithAttributes(attrs...))
}

// UpDownCounter declares a sum that can go down, like in-flight requests.
func (in *Instruments) UpDownCounter(name, description, unit string) metric.Int64UpDownCounter {
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail(name, err)
		return noop.Int64UpDownCounter{}
	}
	return c
}

// Attribute keys used across ledger, database and HTTP instruments.
var (
	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")

	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.table")
	AttrDBState     = attribute.Key("db.pool.state")

	AttrCurrency     = attribute.Key("currency")
	AttrPayoutStatus = attribute.Key("payout_status")
	AttrFailureCode  = attribute.Key("failure_code")
	AttrPermanent    = attribute.Key("permanent")
	AttrJobType      = attribute.Key("job_type")
	AttrOutcome      = attribute.Key("outcome")
	AttrEntryStatus  = attribute.Key("entry_status")
	AttrExecutorOp   = attribute.Key("executor_operation")
)

// Bucket boundaries, in seconds unless noted.
var (
	HTTPDurationBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	DBDurationBuckets       = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	ExecutorDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	JobDurationBuckets      = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 600}
	// bytes
	BodySizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}
)
