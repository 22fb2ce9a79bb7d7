package payoutexec

import (
	"errors"
	"fmt"

	"github.com/marketplace/payouts/internal/domain/finance"
)

var (
	// ErrExecutorTimeout means the executor did not answer within the call
	// timeout. The transfer may still have been executed.
	ErrExecutorTimeout = fmt.Errorf("payout executor call timed out: %w", finance.ErrTransferOutcomeUnknown)

	// ErrTransferNotFound is returned by Status for a payout never submitted
	ErrTransferNotFound = errors.New("payout executor: transfer not found")
)
