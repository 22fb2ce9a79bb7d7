package finance

import (
	"context"
	"time"
)

// Statement is the audit record of a completed payout
type Statement struct {
	Payout      *Payout
	VendorName  string
	Entries     []CommissionEntry
	GeneratedAt time.Time
}

// StatementArchive stores payout statements and returns their object key
type StatementArchive interface {
	Store(ctx context.Context, statement Statement) (string, error)
}
