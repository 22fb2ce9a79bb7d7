package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds configuration for database metrics collection.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration // default 200ms
}

// DBMetrics records query counts, latency and connection pool usage.
type DBMetrics struct {
	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	registration   metric.Registration
	config         DBMetricsConfig
}

// NewDBMetrics creates the query instruments and, when sqlDB is non-nil,
// an observable pool gauge read at every collection.
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB, cfg DBMetricsConfig) (*DBMetrics, error) {
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	m := &DBMetrics{config: cfg}

	in := NewInstruments(meter)
	m.queryTotal = in.Counter("db_query_total", "Total database queries", "{query}")
	m.queryDuration = in.Histogram("db_query_duration_seconds", "Database query duration", "s", DBDurationBuckets)
	m.slowQueryTotal = in.Counter("db_slow_query_total", "Queries slower than the threshold", "{query}")
	if err := in.Err(); err != nil {
		return nil, err
	}

	if sqlDB == nil {
		return m, nil
	}
	pool, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}
	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(pool, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(pool, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(pool, int64(stats.MaxOpenConnections), metric.WithAttributes(AttrDBState.String("max")))
		return nil
	}, pool)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordQuery records one finished statement
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration) {
	if operation == "" {
		operation = "OTHER"
	}
	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))
	if duration > m.config.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// Stop unregisters the pool gauge callback.
func (m *DBMetrics) Stop() {
	if m.registration != nil {
		_ = m.registration.Unregister()
	}
}

func (m *DBMetrics) afterQuery(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	elapsed, ok := queryElapsed(ctx)
	if !ok {
		return
	}
	m.RecordQuery(ctx, operationOf(db.Statement.SQL.String()), db.Statement.Table, elapsed)
}

func operationOf(statement string) string {
	verb, _, _ := strings.Cut(strings.TrimSpace(statement), " ")
	switch verb = strings.ToUpper(verb); verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return verb
	}
	return "OTHER"
}

// RegisterDBMetrics instruments db when metrics are exported. It returns nil
// metrics when disabled; callers must handle that.
func RegisterDBMetrics(db *gorm.DB, provider *Provider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || !provider.MetricsEnabled() {
		logger.Debug("Database metrics disabled, skipping registration")
		return nil, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics, err := NewDBMetrics(provider.Meter("db.client"), sqlDB, cfg)
	if err != nil {
		return nil, err
	}
	if err := registerAround(db, "db_metrics", markQueryStart, metrics.afterQuery); err != nil {
		metrics.Stop()
		return nil, err
	}

	logger.Info("Database metrics registered", zap.Duration("slow_query_threshold", metrics.config.SlowQueryThreshold))
	return metrics, nil
}
