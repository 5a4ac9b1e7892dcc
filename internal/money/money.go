// Package money converts between decimal major-unit amounts used on the wire
// and the integer minor units stored by the auction engine.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	// Scale is the number of minor-unit digits (cents)
	Scale = 2
	// MaxAmount is the largest bid, starting bid or increment, one trillion in major units
	MaxAmount int64 = 100_000_000_000_000
)

var (
	ErrTooPrecise = errors.New("amount has more than two decimal places")
	ErrOverflow   = errors.New("amount out of range")
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// FromDecimal converts a major-unit amount into minor units.
func FromDecimal(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%s: %w", d.String(), ErrTooPrecise)
	}
	if shifted.Abs().GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%s: %w", d.String(), ErrOverflow)
	}
	return shifted.IntPart(), nil
}

// Parse reads a major-unit amount such as "150" or "150.25".
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// Format renders minor units as a fixed two-place major-unit string.
func Format(minor int64) string {
	return ToDecimal(minor).StringFixed(Scale)
}

// ToDecimal converts minor units into a major-unit decimal.
func ToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}
