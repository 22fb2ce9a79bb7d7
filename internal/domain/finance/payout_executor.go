package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared/valueobject"
)

// ErrTransferOutcomeUnknown means the executor call ended without a verdict
// (timeout, dropped connection). The payout must stay PROCESSING until
// reconciliation learns the real outcome.
var ErrTransferOutcomeUnknown = errors.New("payout executor: transfer outcome unknown")

// TransferStatus is the executor's view of a transfer
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusSucceeded TransferStatus = "SUCCEEDED"
	TransferStatusFailed    TransferStatus = "FAILED"
	TransferStatusUnknown   TransferStatus = "UNKNOWN"
)

// IsFinal reports whether the status settles the payout
func (s TransferStatus) IsFinal() bool {
	return s == TransferStatusSucceeded || s == TransferStatusFailed
}

// Vendor-visible failure codes. Raw provider messages never leave FailureDetail.
const (
	FailureTransferRejected    = "TRANSFER_REJECTED"
	FailureInvalidBankAccount  = "INVALID_BANK_ACCOUNT"
	FailureAccountClosed       = "ACCOUNT_CLOSED"
	FailureProviderUnavailable = "PROVIDER_UNAVAILABLE"
	FailureLimitExceeded       = "LIMIT_EXCEEDED"
	FailureCompliance          = "COMPLIANCE_HOLD"
)

var vendorFailureCodes = map[string]bool{
	FailureTransferRejected:    true,
	FailureInvalidBankAccount:  true,
	FailureAccountClosed:       true,
	FailureProviderUnavailable: true,
	FailureLimitExceeded:       true,
	FailureCompliance:          true,
}

// VendorFailureCode maps an executor code to one vendors may see
func VendorFailureCode(code string) string {
	if vendorFailureCodes[code] {
		return code
	}
	return FailureTransferRejected
}

// BankAccount is the payout destination as the executor needs it
type BankAccount struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	RoutingCode   string `json:"routing_code"`
	BankName      string `json:"bank_name,omitempty"`
}

// TransferRequest asks the executor to move a payout's net amount.
// PayoutID is the idempotency key: repeating a request must not move funds twice.
type TransferRequest struct {
	PayoutID  uuid.UUID
	VendorID  uuid.UUID
	NetAmount int64
	Currency  valueobject.Currency
	Bank      BankAccount
}

// TransferResult is the executor's answer for a transfer
type TransferResult struct {
	Reference     string         `json:"reference"`
	Status        TransferStatus `json:"status"`
	FailureCode   string         `json:"failure_code,omitempty"`
	FailureDetail string         `json:"failure_detail,omitempty"`
	Permanent     bool           `json:"permanent,omitempty"`
}

// PayoutExecutor is the boundary to the bank or payment service provider
type PayoutExecutor interface {
	// Transfer issues (or re-issues, idempotently) the transfer for a payout.
	// An accepted transfer usually returns PENDING; the verdict arrives later
	// through a callback or Status.
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)

	// Status queries the executor's record of a payout's transfer
	Status(ctx context.Context, payoutID uuid.UUID) (TransferResult, error)
}

// ExecutorError is a classified transfer failure
type ExecutorError struct {
	Code      string
	Message   string
	Permanent bool
	Err       error
}

// Error implements the error interface
func (e *ExecutorError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.Err != nil {
		return fmt.Sprintf("payout executor %s error %s: %s: %v", kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("payout executor %s error %s: %s", kind, e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *ExecutorError) Unwrap() error {
	return e.Err
}

// NewTransientExecutorError creates a retryable executor error
func NewTransientExecutorError(code, message string, err error) *ExecutorError {
	return &ExecutorError{Code: code, Message: message, Err: err}
}

// NewPermanentExecutorError creates an executor error that needs an operator
func NewPermanentExecutorError(code, message string, err error) *ExecutorError {
	return &ExecutorError{Code: code, Message: message, Permanent: true, Err: err}
}
