package orderimport

import (
	"errors"
	"fmt"
	"strings"
)

// Row error codes
const (
	CodeRequired  = "REQUIRED"
	CodeFormat    = "INVALID_FORMAT"
	CodeRange     = "OUT_OF_RANGE"
	CodeDuplicate = "DUPLICATE_IN_FILE"
	CodeMalformed = "MALFORMED_ROW"
)

var (
	// ErrEmptyFile is returned for a file without content
	ErrEmptyFile = errors.New("CSV file is empty")
	// ErrInvalidEncoding is returned for input that is not UTF-8
	ErrInvalidEncoding = errors.New("CSV file is not valid UTF-8")
	// ErrMissingHeader is returned when the header row is absent or blank
	ErrMissingHeader = errors.New("CSV file missing header row")
	// ErrTooManyRows is returned once a file exceeds ReadOptions.MaxRows
	ErrTooManyRows = errors.New("CSV file exceeds the row limit")
)

// RowError describes one rejected field or row
type RowError struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %q: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ErrorCollection keeps the first max errors and counts the rest
type ErrorCollection struct {
	errors []RowError
	max    int
	total  int
}

// NewErrorCollection creates a collection holding at most max errors (default 100)
func NewErrorCollection(max int) *ErrorCollection {
	if max <= 0 {
		max = 100
	}
	return &ErrorCollection{max: max}
}

// Add records err
func (ec *ErrorCollection) Add(err RowError) {
	ec.total++
	if len(ec.errors) < ec.max {
		ec.errors = append(ec.errors, err)
	}
}

// Errors returns the retained errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// Total counts every error added, retained or not
func (ec *ErrorCollection) Total() int {
	return ec.total
}

// HasErrors reports whether any error was added
func (ec *ErrorCollection) HasErrors() bool {
	return ec.total > 0
}

// Truncated reports whether errors were dropped
func (ec *ErrorCollection) Truncated() bool {
	return ec.total > len(ec.errors)
}

// String renders the errors one per line
func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d error(s)", ec.total)
	if ec.Truncated() {
		fmt.Fprintf(&sb, " (showing first %d)", len(ec.errors))
	}
	sb.WriteString(":\n")
	for _, err := range ec.errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}
