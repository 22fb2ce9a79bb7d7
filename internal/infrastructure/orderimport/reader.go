package orderimport

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
)

// Export columns
const (
	ColEventID      = "event_id"
	ColOrderID      = "order_id"
	ColOrderItemID  = "order_item_id"
	ColVendorID     = "vendor_id"
	ColSaleAmount   = "sale_amount"
	ColCurrency     = "currency"
	ColProductID    = "product_id"
	ColProductTitle = "product_title"
	ColCompletedAt  = "completed_at"
	ColReason       = "reason"
	ColOccurredAt   = "occurred_at"
)

// Kind selects the export format
type Kind string

const (
	KindCompleted Kind = "completed"
	KindReturns   Kind = "returns"
)

// eventNamespace derives stable event ids for rows without one, so replaying
// the same file twice hits the idempotency store instead of the ledger
var eventNamespace = uuid.MustParse("6f1c2b7e-9a43-4d0e-8e51-0b3f5d2c9a10")

// ReadOptions bounds a read
type ReadOptions struct {
	MaxRows   int // 0 means unlimited
	MaxErrors int
}

// Result holds the events of every valid row and the errors of the rest
type Result struct {
	Events []shared.DomainEvent
	Rows   int
	Errors *ErrorCollection
}

// Read parses an export of the given kind. Invalid rows are collected in
// Result.Errors and skipped; structural problems (encoding, missing columns,
// row limit) return an error.
func Read(r io.Reader, kind Kind, opts ReadOptions) (*Result, error) {
	parser, err := NewParser(r)
	if err != nil {
		return nil, err
	}

	var required []string
	var build func(*Row, *ErrorCollection) shared.DomainEvent
	switch kind {
	case KindCompleted:
		required = []string{ColOrderID, ColOrderItemID, ColVendorID, ColSaleAmount, ColCompletedAt}
		build = completedEvent
	case KindReturns:
		required = []string{ColOrderID, ColOrderItemID, ColReason, ColOccurredAt}
		build = returnEvent
	default:
		return nil, shared.NewValidationError("unknown export kind: " + string(kind))
	}
	if missing := parser.Missing(required...); len(missing) > 0 {
		return nil, shared.NewValidationError("missing columns: " + strings.Join(missing, ", "))
	}

	result := &Result{Errors: NewErrorCollection(opts.MaxErrors)}
	seen := make(map[string]int)
	for {
		row, err := parser.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Rows++
			result.Errors.Add(RowError{Line: parser.line, Code: CodeMalformed, Message: err.Error()})
			continue
		}
		if row.IsEmpty() {
			continue
		}
		result.Rows++
		if opts.MaxRows > 0 && result.Rows > opts.MaxRows {
			return nil, ErrTooManyRows
		}

		lineKey := row.Get(ColOrderID) + "\x00" + row.Get(ColOrderItemID)
		if first, dup := seen[lineKey]; dup {
			result.Errors.Add(RowError{
				Line:    row.Line,
				Column:  ColOrderItemID,
				Code:    CodeDuplicate,
				Message: "order line already appears on line " + strconv.Itoa(first),
				Value:   row.Get(ColOrderItemID),
			})
			continue
		}
		seen[lineKey] = row.Line

		if event := build(row, result.Errors); event != nil {
			result.Events = append(result.Events, event)
		}
	}
	return result, nil
}

// rowChecker accumulates field errors of one row
type rowChecker struct {
	row    *Row
	errs   *ErrorCollection
	failed bool
}

func (c *rowChecker) fail(column, code, message string) {
	c.failed = true
	c.errs.Add(RowError{Line: c.row.Line, Column: column, Code: code, Message: message, Value: c.row.Get(column)})
}

func (c *rowChecker) required(column string) string {
	v := c.row.Get(column)
	if v == "" {
		c.fail(column, CodeRequired, "value is required")
	}
	return v
}

func (c *rowChecker) timestamp(column string) time.Time {
	v := c.required(column)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		c.fail(column, CodeFormat, "expected an RFC 3339 timestamp")
	}
	return t.UTC()
}

func (c *rowChecker) id(column string, required bool) uuid.UUID {
	v := c.row.Get(column)
	if v == "" {
		if required {
			c.fail(column, CodeRequired, "value is required")
		}
		return uuid.Nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		c.fail(column, CodeFormat, "expected a UUID")
	}
	return id
}

func (c *rowChecker) eventID(kind Kind) uuid.UUID {
	if id := c.id(ColEventID, false); id != uuid.Nil {
		return id
	}
	name := string(kind) + "|" + c.row.Get(ColOrderID) + "|" + c.row.Get(ColOrderItemID)
	return uuid.NewSHA1(eventNamespace, []byte(name))
}

func completedEvent(row *Row, errs *ErrorCollection) shared.DomainEvent {
	c := &rowChecker{row: row, errs: errs}
	orderID := c.required(ColOrderID)
	itemID := c.required(ColOrderItemID)
	vendorID := c.id(ColVendorID, true)
	completedAt := c.timestamp(ColCompletedAt)

	var amount int64
	if v := c.required(ColSaleAmount); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		switch {
		case err != nil:
			c.fail(ColSaleAmount, CodeFormat, "expected an integer amount in minor units")
		case n <= 0:
			c.fail(ColSaleAmount, CodeRange, "sale amount must be positive")
		default:
			amount = n
		}
	}

	currency := strings.ToUpper(row.Get(ColCurrency))
	if currency != "" && !valueobject.Currency(currency).IsValid() {
		c.fail(ColCurrency, CodeFormat, "expected a 3-letter ISO 4217 code")
	}
	eventID := c.eventID(KindCompleted)
	if c.failed {
		return nil
	}

	event := finance.NewOrderCompletedEvent(eventID, orderID, itemID, vendorID, amount, completedAt)
	event.Currency = currency
	event.ProductID = row.Get(ColProductID)
	event.ProductTitle = row.Get(ColProductTitle)
	return event
}

func returnEvent(row *Row, errs *ErrorCollection) shared.DomainEvent {
	c := &rowChecker{row: row, errs: errs}
	orderID := c.required(ColOrderID)
	itemID := c.required(ColOrderItemID)
	reason := c.required(ColReason)
	occurredAt := c.timestamp(ColOccurredAt)
	eventID := c.eventID(KindReturns)
	if c.failed {
		return nil
	}
	return finance.NewReturnOrChargebackEvent(eventID, orderID, itemID, reason, occurredAt)
}
