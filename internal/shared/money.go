package shared

import "github.com/shopspring/decimal"

// Rounding selects how calculated amounts are rounded. Rounding happens once
// at the point of calculation and is never re-applied downstream.
type Rounding string

const (
	// RoundCents rounds to the nearest cent (default).
	RoundCents Rounding = "CENTS"
	// RoundWhole rounds to the nearest whole currency unit.
	RoundWhole Rounding = "WHOLE"
)

// CentTolerance is the allowed variance when comparing monetary totals.
var CentTolerance = decimal.New(1, -2)

// RoundAmount applies the rounding policy, half away from zero.
func RoundAmount(v decimal.Decimal, mode Rounding) decimal.Decimal {
	if mode == RoundWhole {
		return v.Round(0)
	}
	return v.Round(2)
}

// WithinCent reports whether a and b differ by at most one cent.
func WithinCent(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(CentTolerance) <= 0
}
