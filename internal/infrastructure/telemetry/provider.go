// Package telemetry exports traces, metrics and logs over OTLP and runs the
// continuous profiler. Instrumentation of the ledger lives next to it.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultMetricsInterval = time.Minute
	flushTimeout           = 10 * time.Second
)

// Config selects which signals are exported to the collector.
type Config struct {
	ServiceName       string
	ServiceVersion    string
	CollectorEndpoint string
	Insecure          bool

	Traces        bool
	SamplingRatio float64

	Metrics         bool
	MetricsInterval time.Duration

	// Logs tees zap output into the OTLP log pipeline
	Logs bool
}

func (c Config) any() bool { return c.Traces || c.Metrics || c.Logs }

// Provider owns the SDK providers of every enabled signal. Signals left
// disabled fall back to the global no-op implementations.
type Provider struct {
	cfg    Config
	logger *zap.Logger

	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	logs    *sdklog.LoggerProvider

	mu           sync.Mutex
	spanProfiles bool
}

// Setup builds and installs the global providers for the enabled signals.
// When a later signal fails, the ones already started are shut down.
func Setup(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	p := &Provider{cfg: cfg, logger: logger.Named("telemetry")}
	if !cfg.any() {
		p.logger.Info("Telemetry export disabled")
		return p, nil
	}

	res, err := serviceResource(cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		on    bool
		name  string
		start func(context.Context, *resource.Resource) error
	}{
		{cfg.Traces, "traces", p.startTraces},
		{cfg.Metrics, "metrics", p.startMetrics},
		{cfg.Logs, "logs", p.startLogs},
	}
	for _, s := range steps {
		if !s.on {
			continue
		}
		if err := s.start(ctx, res); err != nil {
			_ = p.Shutdown(context.Background())
			return nil, fmt.Errorf("telemetry %s: %w", s.name, err)
		}
	}

	p.logger.Info("Telemetry export started",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Bool("traces", cfg.Traces),
		zap.Bool("metrics", cfg.Metrics),
		zap.Bool("logs", cfg.Logs),
	)
	return p, nil
}

func (p *Provider) startTraces(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.cfg.CollectorEndpoint)}
	if p.cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return err
	}
	p.traces = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(p.cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(p.traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) startMetrics(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.cfg.CollectorEndpoint)}
	if p.cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return err
	}
	interval := p.cfg.MetricsInterval
	if interval <= 0 {
		interval = defaultMetricsInterval
	}
	p.metrics = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(p.metrics)
	return nil
}

func (p *Provider) startLogs(ctx context.Context, res *resource.Resource) error {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(p.cfg.CollectorEndpoint)}
	if p.cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return err
	}
	p.logs = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(p.logs)
	return nil
}

func serviceResource(name, version string) (*resource.Resource, error) {
	if version == "" {
		version = "dev"
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(name),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}
	return res, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// TracingEnabled reports whether spans leave the process.
func (p *Provider) TracingEnabled() bool { return p != nil && p.traces != nil }

// MetricsEnabled reports whether instruments are exported.
func (p *Provider) MetricsEnabled() bool { return p != nil && p.metrics != nil }

// LogsEnabled reports whether zap entries can be bridged to OTLP.
func (p *Provider) LogsEnabled() bool { return p != nil && p.logs != nil }

// Tracer returns a tracer from the exporting provider or the global one.
func (p *Provider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if !p.TracingEnabled() {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return p.traces.Tracer(name, opts...)
}

// Meter returns a meter from the exporting provider or the global one.
func (p *Provider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if !p.MetricsEnabled() {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return p.metrics.Meter(name, opts...)
}

// EnableSpanProfiles tags CPU samples with the active span so payout and job
// spans link to their profiles. Call it after the profiler has started.
func (p *Provider) EnableSpanProfiles() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.TracingEnabled() {
		return false
	}
	if !p.spanProfiles {
		otel.SetTracerProvider(otelpyroscope.NewTracerProvider(p.traces))
		p.spanProfiles = true
		p.logger.Info("Span profiles enabled")
	}
	return true
}

// BridgeLogger returns base teed into the OTLP log pipeline for entries at
// or above level. Without log export base is returned unchanged.
func (p *Provider) BridgeLogger(base *zap.Logger, level zapcore.Level) *zap.Logger {
	if !p.LogsEnabled() {
		return base
	}
	otelCore := &minLevelCore{
		Core: otelzap.NewCore(p.cfg.ServiceName, otelzap.WithLoggerProvider(p.logs)),
		min:  level,
	}
	return teeLogger(base, otelCore)
}

func teeLogger(base *zap.Logger, extra zapcore.Core) *zap.Logger {
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, extra)
	}))
}

// Shutdown flushes and stops every started signal, logs last so the other
// shutdowns can still be reported.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	var errs []error
	if p.traces != nil {
		if err := p.traces.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("traces: %w", err))
		}
	}
	if p.metrics != nil {
		if err := p.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}
	if p.logs != nil {
		if err := p.logs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logs: %w", err))
		}
	}
	return errors.Join(errs...)
}

// minLevelCore drops entries below min; the otelzap core accepts every level.
type minLevelCore struct {
	zapcore.Core
	min zapcore.Level
}

func (c *minLevelCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && c.Core.Enabled(lvl)
}

func (c *minLevelCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if entry.Level < c.min {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *minLevelCore) With(fields []zapcore.Field) zapcore.Core {
	return &minLevelCore{Core: c.Core.With(fields), min: c.min}
}
