package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marketplace/payouts/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database is the ledger's Postgres connection pool
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

// Option adjusts the GORM configuration used by Open
type Option func(*gorm.Config)

// WithGormLogger routes GORM's statement logging through l
func WithGormLogger(l logger.Interface) Option {
	return func(c *gorm.Config) {
		c.Logger = l
	}
}

// Open connects to Postgres, sizes the pool from cfg, and pings the server
// before returning
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger:                 logger.Discard,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
		// Ledger timestamps are compared across hosts, so they are always UTC
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db, err := wrap(gdb)
	if err != nil {
		return nil, err
	}

	db.sql.SetMaxOpenConns(cfg.MaxOpenConns)
	db.sql.SetMaxIdleConns(cfg.MaxIdleConns)
	db.sql.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	db.sql.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func wrap(gdb *gorm.DB) (*Database, error) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return &Database{DB: gdb, sql: sqlDB}, nil
}

// SQL returns the pool behind the GORM handle, for migrations and pool metrics
func (d *Database) SQL() *sql.DB {
	return d.sql
}

// PingContext checks the connection; it doubles as the readiness check
func (d *Database) PingContext(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Close closes the pool
func (d *Database) Close() error {
	return d.sql.Close()
}

// Transaction runs fn in a transaction bound to ctx
func (d *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.DB.WithContext(ctx).Transaction(fn)
}
