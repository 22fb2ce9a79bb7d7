package persistence

import (
	"errors"
	"strings"

	"github.com/marketplace/payouts/internal/domain/shared"
	"gorm.io/gorm"
)

// isDuplicateKey reports a unique or exclusion constraint violation. Dialectors
// translate unique violations to gorm.ErrDuplicatedKey when TranslateError is
// on; the message check covers the payout period exclusion constraint and
// connections opened without translation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "violates exclusion constraint")
}

// translateWriteError maps unique violations to ALREADY_EXISTS
func translateWriteError(err error, message string) error {
	if err == nil {
		return nil
	}
	if isDuplicateKey(err) {
		return shared.NewDomainError(shared.CodeAlreadyExists, message)
	}
	return err
}
