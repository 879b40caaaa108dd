package finance

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrAmountFormat is returned for anything that is not a plain
	// decimal with at most two fractional digits.
	ErrAmountFormat = errors.New("amount must be a decimal with at most 2 fractional digits")
	// ErrAmountNotPositive is returned when a positive amount is required.
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	// ErrAmountNegative is returned when a non-negative amount is required.
	ErrAmountNegative = errors.New("amount must not be negative")
	// ErrAmountZero is returned for signed ledger entries of zero.
	ErrAmountZero = errors.New("amount must not be zero")
)

var amountPattern = regexp.MustCompile(`^-?\d{1,12}(\.\d{1,2})?$`)

func parse(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if !amountPattern.MatchString(s) {
		return decimal.Zero, ErrAmountFormat
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrAmountFormat
	}
	return d, nil
}

// ParseAmount parses an expense or EMI amount: strictly positive, two
// decimals at most.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := parse(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrAmountNotPositive
	}
	return d, nil
}

// ParseNonNegative parses pouch and security figures.  An empty string
// is zero.
func ParseNonNegative(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := parse(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, ErrAmountNegative
	}
	return d, nil
}

// ParseSigned parses a salary ledger amount: any non-zero value.
func ParseSigned(raw string) (decimal.Decimal, error) {
	d, err := parse(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsZero() {
		return decimal.Zero, ErrAmountZero
	}
	return d, nil
}
