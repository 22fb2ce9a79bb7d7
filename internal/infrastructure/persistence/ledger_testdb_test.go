package persistence

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/partner"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
	"github.com/marketplace/payouts/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	// every pooled connection would get its own in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.VendorModel{},
		&models.CommissionEntryModel{},
		&models.PayoutModel{},
		&models.PayoutItemModel{},
		&shared.OutboxEntry{},
	)
	require.NoError(t, err)
	return db
}

func newTestVendor(t *testing.T) *partner.Vendor {
	t.Helper()
	vendor, err := partner.NewVendor(partner.Profile{
		BusinessName: gofakeit.Company(),
		TaxID:        gofakeit.Numerify("TAX-#########"),
		Contact:      partner.Contact{Name: gofakeit.Name(), Email: gofakeit.Email()},
		Bank: partner.BankDetails{
			AccountHolder: gofakeit.Name(),
			AccountNumber: gofakeit.Numerify("############"),
			RoutingCode:   gofakeit.Numerify("#########"),
		},
		Currency: valueobject.USD,
	}, partner.Policy{
		CommissionType: partner.CommissionTypePercentage,
		CommissionRate: decimal.RequireFromString("0.1"),
		PayoutSchedule: partner.PayoutScheduleMonthly,
	})
	require.NoError(t, err)
	return vendor
}

func newTestAccrual(t *testing.T, vendorID uuid.UUID, sale int64, accruedAt time.Time) *finance.CommissionEntry {
	t.Helper()
	entry, err := finance.NewAccrual(finance.AccrualInput{
		VendorID:     vendorID,
		OrderID:      gofakeit.Numerify("ORD-########"),
		OrderItemID:  gofakeit.Numerify("ITEM-####"),
		ProductID:    gofakeit.UUID(),
		ProductTitle: gofakeit.ProductName(),
		SaleAmount:   sale,
		Currency:     valueobject.USD,
		Terms: finance.CommissionTerms{
			Type: finance.CommissionTypePercentage,
			Rate: decimal.RequireFromString("0.1"),
		},
		AccruedAt: accruedAt,
	})
	require.NoError(t, err)
	return entry
}
