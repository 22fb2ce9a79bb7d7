package persistence

import (
	"context"

	appfinance "github.com/marketplace/payouts/internal/application/finance"
	apppartner "github.com/marketplace/payouts/internal/application/partner"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements the finance TransactionScope using GORM transactions.
// Repositories and the outbox recorder handed to fn share one *gorm.DB transaction.
type GormTransactionScope struct {
	db    *gorm.DB
	saver shared.OutboxEventSaver
}

// NewGormTransactionScope creates a new GormTransactionScope.
// saver writes recorded events to the outbox; nil discards them.
func NewGormTransactionScope(db *gorm.DB, saver shared.OutboxEventSaver) *GormTransactionScope {
	return &GormTransactionScope{db: db, saver: saver}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, saver: s.saver})
	})
}

// GormVendorTransactionScope implements the partner TransactionScope using GORM transactions.
type GormVendorTransactionScope struct {
	db    *gorm.DB
	saver shared.OutboxEventSaver
}

// NewGormVendorTransactionScope creates a new GormVendorTransactionScope
func NewGormVendorTransactionScope(db *gorm.DB, saver shared.OutboxEventSaver) *GormVendorTransactionScope {
	return &GormVendorTransactionScope{db: db, saver: saver}
}

// Execute runs the given function within a database transaction
func (s *GormVendorTransactionScope) Execute(ctx context.Context, fn func(repos apppartner.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, saver: s.saver})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx    *gorm.DB
	saver shared.OutboxEventSaver
}

// VendorRepo returns the vendor repository scoped to the current transaction.
func (r *gormTransactionalRepositories) VendorRepo() partner.VendorRepository {
	return NewGormVendorRepository(r.tx)
}

// EntryRepo returns the commission entry repository scoped to the current transaction.
func (r *gormTransactionalRepositories) EntryRepo() finance.CommissionEntryRepository {
	return NewGormCommissionEntryRepository(r.tx)
}

// PayoutRepo returns the payout repository scoped to the current transaction.
func (r *gormTransactionalRepositories) PayoutRepo() finance.PayoutRepository {
	return NewGormPayoutRepository(r.tx)
}

// Events returns a recorder that writes to the outbox of the current transaction.
func (r *gormTransactionalRepositories) Events() shared.EventRecorder {
	return outboxRecorder{tx: r.tx, saver: r.saver}
}

type outboxRecorder struct {
	tx    *gorm.DB
	saver shared.OutboxEventSaver
}

func (o outboxRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if o.saver == nil || len(events) == 0 {
		return nil
	}
	return o.saver.SaveEvents(ctx, o.tx, events...)
}

var (
	_ appfinance.TransactionScope          = (*GormTransactionScope)(nil)
	_ appfinance.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
	_ apppartner.TransactionScope          = (*GormVendorTransactionScope)(nil)
	_ apppartner.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
