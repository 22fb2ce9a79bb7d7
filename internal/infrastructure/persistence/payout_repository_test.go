package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// createTestPayout stores approved entries and a payout freezing them
func createTestPayout(t *testing.T, db *gorm.DB, vendorID uuid.UUID, start time.Time, amounts ...int64) *finance.Payout {
	t.Helper()
	ctx := context.Background()
	entryRepo := NewGormCommissionEntryRepository(db)

	entries := make([]*finance.CommissionEntry, 0, len(amounts))
	for _, sale := range amounts {
		e := approvedAccrual(t, vendorID, sale, start.Add(time.Hour))
		_, err := entryRepo.CreateIfAbsent(ctx, e)
		require.NoError(t, err)
		entries = append(entries, e)
	}

	payout, err := finance.NewPayout(finance.PayoutDraft{
		VendorID:    vendorID,
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, 0),
		Currency:    valueobject.USD,
		Entries:     entries,
		Fees:        25,
	})
	require.NoError(t, err)
	require.NoError(t, NewGormPayoutRepository(db).Create(ctx, payout))
	return payout
}

func TestGormPayoutRepository_CreateAndFind(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPayoutRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()

	payout := createTestPayout(t, db, vendorID, ledgerDay, 10000, 20000, 30000)

	found, err := repo.FindByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.PayoutStatusPending, found.Status)
	assert.Equal(t, int64(6000), found.CommissionTotal)
	assert.Equal(t, int64(25), found.FeesDeducted)
	assert.Equal(t, found.CommissionTotal-found.FeesDeducted-found.TaxDeducted, found.NetAmount)
	assert.Len(t, found.Items, 3)
	assert.Equal(t, found.CommissionTotal, found.ItemsTotal())
	assert.ElementsMatch(t, payout.CommissionIDs(), found.CommissionIDs())
	assert.True(t, ledgerDay.Equal(found.PeriodStart))

	t.Run("unknown payout", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("creating the same payout twice", func(t *testing.T) {
		err := repo.Create(ctx, payout)
		require.Error(t, err)
		assert.Equal(t, shared.CodeAlreadyExists, shared.CodeOf(err))
	})
}

func TestGormPayoutRepository_Overlap(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPayoutRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()

	march := createTestPayout(t, db, vendorID, ledgerDay, 10000)
	april := createTestPayout(t, db, vendorID, ledgerDay.AddDate(0, 1, 0), 10000)

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected bool
	}{
		{"same period", ledgerDay, ledgerDay.AddDate(0, 1, 0), true},
		{"touching end is not overlap", ledgerDay.AddDate(0, 2, 0), ledgerDay.AddDate(0, 3, 0), false},
		{"touching start is not overlap", ledgerDay.AddDate(0, -1, 0), ledgerDay, false},
		{"straddles both", ledgerDay.AddDate(0, 0, 15), ledgerDay.AddDate(0, 1, 15), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overlaps, err := repo.ExistsOverlapping(ctx, vendorID, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, overlaps)
		})
	}

	t.Run("other vendors never overlap", func(t *testing.T) {
		overlaps, err := repo.ExistsOverlapping(ctx, uuid.New(), ledgerDay, ledgerDay.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.False(t, overlaps)
	})

	t.Run("latest active payout", func(t *testing.T) {
		latest, err := repo.FindLatestActiveByVendor(ctx, vendorID)
		require.NoError(t, err)
		assert.Equal(t, april.ID, latest.ID)
	})

	t.Run("cancelled payouts free their period", func(t *testing.T) {
		loaded, err := repo.FindByIDForUpdate(ctx, april.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Cancel("operator", ledgerDay))
		require.NoError(t, repo.SaveWithLock(ctx, loaded))

		overlaps, err := repo.ExistsOverlapping(ctx, vendorID, ledgerDay.AddDate(0, 1, 0), ledgerDay.AddDate(0, 2, 0))
		require.NoError(t, err)
		assert.False(t, overlaps)

		latest, err := repo.FindLatestActiveByVendor(ctx, vendorID)
		require.NoError(t, err)
		assert.Equal(t, march.ID, latest.ID)
	})
}

func TestGormPayoutRepository_SaveWithLock(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPayoutRepository(db)
	ctx := context.Background()

	payout := createTestPayout(t, db, uuid.New(), ledgerDay, 10000)
	now := ledgerDay.AddDate(0, 1, 1)

	loaded, err := repo.FindByID(ctx, payout.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.Submit(now))
	require.NoError(t, repo.SaveWithLock(ctx, loaded))

	stored, err := repo.FindByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.PayoutStatusProcessing, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.Len(t, stored.Items, 1)

	t.Run("stale writer loses", func(t *testing.T) {
		require.NoError(t, payout.Cancel("operator", now))
		assert.ErrorIs(t, repo.SaveWithLock(ctx, payout), shared.ErrConcurrencyConflict)
	})
}

func TestGormPayoutRepository_RetryAndReconcileQueries(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPayoutRepository(db)
	ctx := context.Background()
	now := ledgerDay.AddDate(0, 2, 0)

	submit := func(p *finance.Payout, at time.Time) *finance.Payout {
		loaded, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Submit(at))
		require.NoError(t, repo.SaveWithLock(ctx, loaded))
		return loaded
	}

	due := submit(createTestPayout(t, db, uuid.New(), ledgerDay, 1000), now.Add(-2*time.Hour))
	retryAt := now.Add(-time.Minute)
	require.NoError(t, due.Fail(finance.FailureProviderUnavailable, "503", false, &retryAt, now.Add(-time.Hour)))
	require.NoError(t, repo.SaveWithLock(ctx, due))

	later := submit(createTestPayout(t, db, uuid.New(), ledgerDay, 1000), now.Add(-2*time.Hour))
	retryLater := now.Add(time.Hour)
	require.NoError(t, later.Fail(finance.FailureProviderUnavailable, "503", false, &retryLater, now.Add(-time.Hour)))
	require.NoError(t, repo.SaveWithLock(ctx, later))

	permanent := submit(createTestPayout(t, db, uuid.New(), ledgerDay, 1000), now.Add(-2*time.Hour))
	require.NoError(t, permanent.Fail(finance.FailureInvalidBankAccount, "closed", true, &retryAt, now.Add(-time.Hour)))
	require.NoError(t, repo.SaveWithLock(ctx, permanent))

	stuck := submit(createTestPayout(t, db, uuid.New(), ledgerDay, 1000), now.Add(-3*time.Hour))
	submit(createTestPayout(t, db, uuid.New(), ledgerDay, 1000), now.Add(-time.Minute))

	ids, err := repo.FindDueForRetry(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{due.ID}, ids)

	ids, err = repo.FindStuckProcessing(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stuck.ID}, ids)

	t.Run("lists by status", func(t *testing.T) {
		payouts, total, err := repo.FindAll(ctx, finance.PayoutFilter{Status: finance.PayoutStatusFailed})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		for _, p := range payouts {
			assert.Len(t, p.Items, 1)
		}
	})
}

func TestGormPayoutRepository_SetStatementKey(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPayoutRepository(db)
	ctx := context.Background()

	payout := createTestPayout(t, db, uuid.New(), ledgerDay, 1000)
	require.NoError(t, repo.SetStatementKey(ctx, payout.ID, "statements/2026/03/p.csv"))

	stored, err := repo.FindByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, "statements/2026/03/p.csv", stored.StatementKey)
	assert.Equal(t, payout.Version, stored.Version)

	assert.ErrorIs(t, repo.SetStatementKey(ctx, uuid.New(), "x"), shared.ErrNotFound)
}
