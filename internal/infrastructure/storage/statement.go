// Package storage archives payout statements in S3-compatible object storage.
package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
)

// StatementContentType is the media type of rendered statements
const StatementContentType = "text/csv"

var statementHeader = []string{
	"payout_id", "vendor", "period_start", "period_end", "currency",
	"commission_entry_id", "kind", "order_id", "order_item_id", "product",
	"sale_amount", "commission_amount",
}

// StatementKey returns the object key of a payout statement:
// {prefix}/{vendor_id}/{period_end}/{payout_id}.csv
func StatementKey(prefix string, p *finance.Payout) string {
	return path.Join(prefix, p.VendorID.String(), p.PeriodEnd.UTC().Format(time.DateOnly), p.ID.String()+".csv")
}

// RenderStatement writes the statement as CSV: one line per frozen entry
// followed by the totals lines. Amounts are in major units.
func RenderStatement(s finance.Statement) ([]byte, error) {
	p := s.Payout
	if p == nil {
		return nil, errors.New("statement has no payout")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(statementHeader)

	amount := func(v int64) string { return valueobject.FormatMinor(v, p.Currency) }
	prefix := []string{
		p.ID.String(), s.VendorName,
		p.PeriodStart.UTC().Format(time.RFC3339), p.PeriodEnd.UTC().Format(time.RFC3339),
		p.Currency.String(),
	}

	byID := make(map[string]finance.CommissionEntry, len(s.Entries))
	for _, e := range s.Entries {
		byID[e.ID.String()] = e
	}
	for _, item := range p.Items {
		e, ok := byID[item.CommissionEntryID.String()]
		if !ok {
			return nil, fmt.Errorf("statement is missing commission entry %s", item.CommissionEntryID)
		}
		row := append(append([]string{}, prefix...),
			e.ID.String(), string(e.Kind), e.OrderID, e.OrderItemID, e.ProductTitle,
			amount(e.SaleAmount), amount(item.CommissionAmount),
		)
		_ = w.Write(row)
	}

	totals := []struct {
		label string
		value int64
	}{
		{"commission_total", p.CommissionTotal},
		{"fees_deducted", -p.FeesDeducted},
		{"tax_deducted", -p.TaxDeducted},
		{"net_amount", p.NetAmount},
	}
	for _, t := range totals {
		row := append(append([]string{}, prefix...), "", t.label, "", "", "", "", amount(t.value))
		_ = w.Write(row)
	}
	_ = w.Write(append(append([]string{}, prefix...), "", "entries", "", "", "", "", strconv.Itoa(len(p.Items))))

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to render statement: %w", err)
	}
	return buf.Bytes(), nil
}
