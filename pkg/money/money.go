package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// All card balances, quotas and order amounts are fixed-point values with
// two fractional digits. Amounts are normalized on every write boundary so
// equality checks inside the system never need a tolerance; the tolerance
// below exists only where a provider-reported decimal string crosses the
// trust boundary.

// callbackTolerance absorbs rounding drift in amounts parsed from a
// third-party payment payload.
var callbackTolerance = decimal.NewFromFloat(0.01)

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Normalize rounds an amount to two decimal places (banker-free, half up).
func Normalize(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Parse converts an untrusted decimal string into a normalized amount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Normalize(d), nil
}

// ParseReported parses a provider-reported amount without normalizing it.
// Rounding the reported value before the tolerance check would shift the
// acceptance window by up to half a cent.
func ParseReported(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// WithinTolerance reports whether two amounts differ by less than 0.01.
// Used only when comparing a stored order amount against the amount a
// payment provider reports in a callback.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(callbackTolerance)
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
