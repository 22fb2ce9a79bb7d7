package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testLedgerRow struct {
	ID     uint `gorm:"primaryKey"`
	Status string
}

func (testLedgerRow) TableName() string { return "test_ledger_rows" }

func setupTelemetryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := setupTelemetryTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, plugin.RegisterOtelGorm(db))
	assert.Nil(t, db.Callback().Query().Get("otel_timing:after_query"))
}

func TestDBTracingPlugin_Defaults(t *testing.T) {
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zaptest.NewLogger(t))
	assert.Equal(t, 200*time.Millisecond, plugin.config.SlowQueryThresh)
	assert.Equal(t, "postgresql", plugin.config.DBSystem)
}

func TestDBTracingPlugin_RegistersOtelGorm(t *testing.T) {
	recorder := useSpanRecorder(t)
	db := setupTelemetryTestDB(t)
	require.NoError(t, db.AutoMigrate(&testLedgerRow{}))

	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zaptest.NewLogger(t))
	require.NoError(t, plugin.RegisterOtelGorm(db))
	assert.NotNil(t, db.Callback().Query().Get("otel_timing:after_query"))

	ctx, parent := StartSpan(context.Background(), "ledger", "test", trace.SpanKindInternal)
	require.NoError(t, db.WithContext(ctx).Create(&testLedgerRow{Status: "PENDING"}).Error)
	parent.End()

	var children int
	for _, span := range recorder.Ended() {
		if span.Parent().SpanID() == parent.SpanContext().SpanID() {
			children++
		}
	}
	assert.Positive(t, children, "otelgorm starts a span per statement")
}

func TestDBTracingPlugin_AfterQueryMarksSlowStatements(t *testing.T) {
	recorder := useSpanRecorder(t)
	db := setupTelemetryTestDB(t)
	require.NoError(t, db.AutoMigrate(&testLedgerRow{}))

	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Nanosecond}, zaptest.NewLogger(t))
	require.NoError(t, registerAround(db, "otel_timing", markQueryStart, plugin.afterQuery))

	ctx, span := StartSpan(context.Background(), "ledger", "insert", trace.SpanKindInternal)
	rows := []testLedgerRow{{Status: "PENDING"}, {Status: "APPROVED"}, {Status: "PAID"}}
	require.NoError(t, db.WithContext(ctx).Create(&rows).Error)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	attrs := spanAttributes(ended[0])
	assert.Equal(t, int64(3), attrs["db.rows_affected"].AsInt64())
	assert.Equal(t, "test_ledger_rows", attrs["db.sql.table"].AsString())
	assert.True(t, attrs["db.slow_query"].AsBool(), "a 1ns threshold marks every statement slow")
	require.NotEmpty(t, ended[0].Events())
	assert.Equal(t, "slow_query_warning", ended[0].Events()[0].Name)
}

func TestQueryElapsed_WithoutStart(t *testing.T) {
	_, ok := queryElapsed(context.Background())
	assert.False(t, ok)
}

func TestOperationOf(t *testing.T) {
	tests := map[string]string{
		`SELECT * FROM "payouts"`:         "SELECT",
		`  insert into commission_entries`: "INSERT",
		`UPDATE "payouts" SET status = ?`: "UPDATE",
		`DELETE FROM outbox_entries`:      "DELETE",
		`PRAGMA foreign_keys = ON`:        "OTHER",
		``:                                "OTHER",
	}
	for statement, want := range tests {
		assert.Equal(t, want, operationOf(statement), statement)
	}
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	provider, reader := newTestMeter(t)
	m, err := NewDBMetrics(provider.Meter("db.client"), nil, DBMetricsConfig{SlowQueryThreshold: 50 * time.Millisecond})
	require.NoError(t, err)
	defer m.Stop()

	ctx := context.Background()
	m.RecordQuery(ctx, "SELECT", "payouts", 10*time.Millisecond)
	m.RecordQuery(ctx, "SELECT", "payouts", 80*time.Millisecond)
	m.RecordQuery(ctx, "", "", 90*time.Millisecond)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumValue(t, metrics["db_query_total"], AttrDBOperation.String("SELECT")))
	assert.Equal(t, int64(1), sumValue(t, metrics["db_query_total"], AttrDBOperation.String("OTHER")))
	assert.Equal(t, int64(1), sumValue(t, metrics["db_slow_query_total"], AttrDBTable.String("payouts")))
	assert.Equal(t, int64(1), sumValue(t, metrics["db_slow_query_total"], AttrDBTable.String("unknown")))
}

func TestDBMetrics_PoolGauge(t *testing.T) {
	db := setupTelemetryTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	provider, reader := newTestMeter(t)
	m, err := NewDBMetrics(provider.Meter("db.client"), sqlDB, DBMetricsConfig{})
	require.NoError(t, err)
	defer m.Stop()

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), gaugeValue(t, metrics["db_pool_connections"], AttrDBState.String("max")))
	assert.Equal(t, 200*time.Millisecond, m.config.SlowQueryThreshold)
}

func TestRegisterDBMetrics_CountsStatements(t *testing.T) {
	db := setupTelemetryTestDB(t)
	require.NoError(t, db.AutoMigrate(&testLedgerRow{}))

	meters, reader := newTestMeter(t)
	m, err := RegisterDBMetrics(db, &Provider{metrics: meters}, DBMetricsConfig{Enabled: true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, m)
	defer m.Stop()

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&testLedgerRow{Status: "APPROVED"}).Error)
	var count int64
	require.NoError(t, db.WithContext(ctx).Model(&testLedgerRow{}).Count(&count).Error)

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumValue(t, metrics["db_query_total"], AttrDBOperation.String("INSERT")))
	assert.Equal(t, int64(1), sumValue(t, metrics["db_query_total"], AttrDBOperation.String("SELECT")))
}

func TestRegisterDBMetrics_Disabled(t *testing.T) {
	db := setupTelemetryTestDB(t)
	log := zaptest.NewLogger(t)

	m, err := RegisterDBMetrics(db, nil, DBMetricsConfig{Enabled: true}, log)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = RegisterDBMetrics(db, new(Provider), DBMetricsConfig{Enabled: true}, log)
	require.NoError(t, err)
	assert.Nil(t, m)

	meters, _ := newTestMeter(t)
	m, err = RegisterDBMetrics(db, &Provider{metrics: meters}, DBMetricsConfig{Enabled: false}, log)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewDBMetrics_NoopMeter(t *testing.T) {
	m, err := NewDBMetrics(noop.NewMeterProvider().Meter("db.client"), nil, DBMetricsConfig{})
	require.NoError(t, err)
	m.RecordQuery(context.Background(), "SELECT", "payouts", time.Second)
	m.Stop()
}
