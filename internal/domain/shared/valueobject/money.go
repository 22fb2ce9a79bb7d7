package valueobject

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	INR Currency = "INR"
	JPY Currency = "JPY"
	CNY Currency = "CNY"
)

// DefaultCurrency is used when a vendor does not specify one
const DefaultCurrency = USD

// zeroDecimalCurrencies have no minor unit
var zeroDecimalCurrencies = map[Currency]bool{
	JPY:   true,
	"KRW": true,
	"VND": true,
	"CLP": true,
}

// ParseCurrency normalizes and validates a three-letter currency code
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid currency code %q", code)
	}
	return c, nil
}

// IsValid reports whether c looks like an ISO 4217 code
func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// MinorExponent returns the number of minor-unit digits of the currency
func (c Currency) MinorExponent() int32 {
	if zeroDecimalCurrencies[c] {
		return 0
	}
	return 2
}

// ApplyRate multiplies an amount in minor units by rate and rounds half-up
// (ties away from zero) to a whole minor unit.
func ApplyRate(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

// ClampAmount bounds v to [lo, hi]
func ClampAmount(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FormatMinor renders a minor-unit amount in major units, e.g. 12345 USD -> "123.45"
func FormatMinor(amount int64, currency Currency) string {
	exp := currency.MinorExponent()
	return decimal.New(amount, -exp).StringFixed(exp)
}

// SumAmounts adds minor-unit amounts
func SumAmounts(amounts ...int64) int64 {
	var total int64
	for _, a := range amounts {
		total += a
	}
	return total
}
