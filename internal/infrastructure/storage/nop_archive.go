package storage

import (
	"context"

	"github.com/marketplace/payouts/internal/domain/finance"
	"go.uber.org/zap"
)

var _ finance.StatementArchive = (*NopStatementArchive)(nil)

// NopStatementArchive renders statements but keeps nothing.
// It stands in for S3 in development when no bucket is configured.
type NopStatementArchive struct {
	logger *zap.Logger
}

// NewNopStatementArchive creates a new NopStatementArchive
func NewNopStatementArchive(logger *zap.Logger) *NopStatementArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NopStatementArchive{logger: logger}
}

// Store validates the statement and returns the key it would have been stored under
func (a *NopStatementArchive) Store(_ context.Context, statement finance.Statement) (string, error) {
	body, err := RenderStatement(statement)
	if err != nil {
		return "", err
	}
	key := StatementKey("local", statement.Payout)
	a.logger.Debug("Statement archive disabled, discarding statement",
		zap.String("key", key),
		zap.Int("bytes", len(body)),
	)
	return key, nil
}
