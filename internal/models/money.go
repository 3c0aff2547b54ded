package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var centFactor = decimal.NewFromInt(100)

// ParseAmount converts a decimal currency string ("100.00") to minor
// units. Rejects negative amounts and sub-cent precision.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad amount %q", ErrValidation, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	cents := d.Mul(centFactor)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: amount %q has sub-cent precision", ErrValidation, s)
	}
	return cents.IntPart(), nil
}

// FormatAmount renders minor units as a decimal string with two places.
func FormatAmount(cents int64) string {
	return decimal.NewFromInt(cents).Div(centFactor).StringFixed(2)
}
