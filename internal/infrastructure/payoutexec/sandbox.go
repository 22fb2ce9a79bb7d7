// Package payoutexec holds PayoutExecutor implementations and decorators.
package payoutexec

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/finance"
	"go.uber.org/zap"
)

// Sandbox account number suffixes that trigger failures, the way PSP test
// environments use magic card numbers.
const (
	SandboxSuffixInvalidAccount = "0002"
	SandboxSuffixAccountClosed  = "0003"
	SandboxSuffixUnavailable    = "0009"
)

// SandboxOutcome scripts how the sandbox answers for one payout
type SandboxOutcome struct {
	Status      finance.TransferStatus
	FailureCode string
	Permanent   bool
	// Err is returned from Transfer instead of a result
	Err error
}

// SandboxConfig configures the sandbox executor
type SandboxConfig struct {
	// SettleAfter is how long an accepted transfer stays PENDING before
	// Status reports SUCCEEDED. Zero settles on the Transfer call itself.
	SettleAfter time.Duration
}

type sandboxTransfer struct {
	result     finance.TransferResult
	acceptedAt time.Time
}

// SandboxExecutor is a deterministic in-memory executor for development and
// tests. It is idempotent per payout id: repeating Transfer for a known payout
// returns the recorded result and moves no funds.
type SandboxExecutor struct {
	mu        sync.Mutex
	config    SandboxConfig
	transfers map[uuid.UUID]*sandboxTransfer
	scripted  map[uuid.UUID]SandboxOutcome
	calls     map[uuid.UUID]int
	logger    *zap.Logger
	now       func() time.Time
}

// NewSandboxExecutor creates a new SandboxExecutor
func NewSandboxExecutor(cfg SandboxConfig, logger *zap.Logger) *SandboxExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SandboxExecutor{
		config:    cfg,
		transfers: make(map[uuid.UUID]*sandboxTransfer),
		scripted:  make(map[uuid.UUID]SandboxOutcome),
		calls:     make(map[uuid.UUID]int),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Script fixes the outcome of the next Transfer for a payout. A failed
// transfer is forgotten, so a later retry is answered by the script again.
func (e *SandboxExecutor) Script(payoutID uuid.UUID, outcome SandboxOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripted[payoutID] = outcome
}

// Calls returns how many times Transfer was called for a payout
func (e *SandboxExecutor) Calls(payoutID uuid.UUID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[payoutID]
}

// Transfer implements finance.PayoutExecutor
func (e *SandboxExecutor) Transfer(ctx context.Context, req finance.TransferRequest) (finance.TransferResult, error) {
	if err := ctx.Err(); err != nil {
		return finance.TransferResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[req.PayoutID]++

	if t, ok := e.transfers[req.PayoutID]; ok {
		return e.settle(t), nil
	}

	outcome, scripted := e.scripted[req.PayoutID]
	if !scripted {
		outcome = outcomeForAccount(req.Bank.AccountNumber)
	}
	if outcome.Err != nil {
		return finance.TransferResult{}, outcome.Err
	}

	result := finance.TransferResult{
		Reference: sandboxReference(req.PayoutID),
		Status:    outcome.Status,
	}
	if result.Status == "" {
		result.Status = finance.TransferStatusPending
		if e.config.SettleAfter <= 0 {
			result.Status = finance.TransferStatusSucceeded
		}
	}
	if result.Status == finance.TransferStatusFailed {
		result.FailureCode = outcome.FailureCode
		result.FailureDetail = "sandbox rejected transfer: " + outcome.FailureCode
		result.Permanent = outcome.Permanent
		e.logger.Info("Sandbox transfer rejected",
			zap.String("payout_id", req.PayoutID.String()),
			zap.String("failure_code", outcome.FailureCode),
		)
		return result, nil
	}

	e.transfers[req.PayoutID] = &sandboxTransfer{result: result, acceptedAt: e.now()}
	e.logger.Info("Sandbox transfer accepted",
		zap.String("payout_id", req.PayoutID.String()),
		zap.Int64("net_amount", req.NetAmount),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// Status implements finance.PayoutExecutor
func (e *SandboxExecutor) Status(ctx context.Context, payoutID uuid.UUID) (finance.TransferResult, error) {
	if err := ctx.Err(); err != nil {
		return finance.TransferResult{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.transfers[payoutID]
	if !ok {
		return finance.TransferResult{}, ErrTransferNotFound
	}
	return e.settle(t), nil
}

// settle promotes a PENDING transfer once SettleAfter has passed
func (e *SandboxExecutor) settle(t *sandboxTransfer) finance.TransferResult {
	if t.result.Status == finance.TransferStatusPending && !e.now().Before(t.acceptedAt.Add(e.config.SettleAfter)) {
		t.result.Status = finance.TransferStatusSucceeded
	}
	return t.result
}

func outcomeForAccount(accountNumber string) SandboxOutcome {
	switch {
	case strings.HasSuffix(accountNumber, SandboxSuffixInvalidAccount):
		return SandboxOutcome{Status: finance.TransferStatusFailed, FailureCode: finance.FailureInvalidBankAccount, Permanent: true}
	case strings.HasSuffix(accountNumber, SandboxSuffixAccountClosed):
		return SandboxOutcome{Status: finance.TransferStatusFailed, FailureCode: finance.FailureAccountClosed, Permanent: true}
	case strings.HasSuffix(accountNumber, SandboxSuffixUnavailable):
		return SandboxOutcome{Err: finance.NewTransientExecutorError(finance.FailureProviderUnavailable, "sandbox provider unavailable", nil)}
	}
	return SandboxOutcome{}
}

func sandboxReference(payoutID uuid.UUID) string {
	return "sbx_" + strings.ReplaceAll(payoutID.String(), "-", "")[:16]
}

var _ finance.PayoutExecutor = (*SandboxExecutor)(nil)
