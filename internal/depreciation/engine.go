// Package depreciation computes monthly depreciation, accumulated
// depreciation, and book value for livestock assets. The engine is pure:
// it reads asset values and configuration, touches no storage, and applies
// rounding exactly once at the point of calculation.
//
// Month convention: elapsed months are whole calendar months between the
// freshen month and the as-of month, day-of-month ignored. Under this
// convention the month of disposal never accrues a charge; accumulated
// depreciation at disposal runs through the first day of the disposal month.
// The same convention is used by the disposition processor and integrity
// repair so every path agrees on accumulated amounts.
package depreciation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

// Engine evaluates depreciation schedules under one company configuration.
type Engine struct {
	lifeMonths    int
	rounding      shared.Rounding
	partialMonths bool
}

// NewEngine derives an engine from company settings.
func NewEngine(cfg settings.Settings) Engine {
	return Engine{
		lifeMonths:    cfg.UsefulLifeMonths(),
		rounding:      cfg.Rounding,
		partialMonths: cfg.PartialMonths,
	}
}

// LifeMonths exposes the configured useful life.
func (e Engine) LifeMonths() int {
	return e.lifeMonths
}

// MonthsElapsed returns the depreciation months between the freshen date and
// asOf. Whole calendar months by default; with partial-month proration the
// trailing fraction counts the days elapsed since the last monthly
// anniversary, so a span straddling a month boundary stays positive.
func (e Engine) MonthsElapsed(freshen, asOf time.Time) decimal.Decimal {
	whole := shared.WholeMonthsBetween(freshen, asOf)
	if !e.partialMonths {
		if whole < 0 {
			return decimal.Zero
		}
		return decimal.NewFromInt(int64(whole))
	}
	days := asOf.Day() - freshen.Day()
	if days < 0 {
		whole--
		days += daysInPreviousMonth(asOf)
	}
	if whole < 0 {
		return decimal.Zero
	}
	frac := decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(int64(daysInMonth(asOf))))
	one := decimal.NewFromInt(1)
	if frac.GreaterThan(one) {
		frac = one
	}
	return decimal.NewFromInt(int64(whole)).Add(frac)
}

// MonthlyDepreciation returns the straight-line charge for one full month, or
// the first-month charge for the declining/sum-of-years schedules. Returns
// zero when asOf precedes the freshen date or the asset is fully depreciated.
func (e Engine) MonthlyDepreciation(a ledger.Asset, asOf time.Time) decimal.Decimal {
	if asOf.Before(a.FreshenDate) {
		return decimal.Zero
	}
	months := e.MonthsElapsed(a.FreshenDate, asOf).IntPart()
	return e.chargeForMonthIndex(a, int(months)+1)
}

// ChargeForPeriod returns the depreciation charge an asset accrues in one
// accounting month: the accumulated delta between the period start and the
// next period start.
func (e Engine) ChargeForPeriod(a ledger.Asset, period shared.Period) decimal.Decimal {
	before := e.AccumulatedAt(a, period.Start())
	after := e.AccumulatedAt(a, period.Next().Start())
	return after.Sub(before)
}

// AccumulatedAt returns total depreciation taken as of asOf, capped at the
// depreciable base.
func (e Engine) AccumulatedAt(a ledger.Asset, asOf time.Time) decimal.Decimal {
	if asOf.Before(a.FreshenDate) {
		return decimal.Zero
	}
	elapsed := e.MonthsElapsed(a.FreshenDate, asOf)
	if elapsed.Sign() <= 0 {
		return decimal.Zero
	}
	whole := int(elapsed.IntPart())
	acc := e.accumulatedWholeMonths(a, whole)
	frac := elapsed.Sub(decimal.NewFromInt(int64(whole)))
	if frac.Sign() > 0 {
		partial := e.chargeForMonthIndex(a, whole+1).Mul(frac)
		acc = acc.Add(shared.RoundAmount(partial, e.rounding))
	}
	base := a.DepreciableBase()
	if acc.GreaterThan(base) {
		return base
	}
	return acc
}

// BookValueAt returns purchase price minus accumulated depreciation, floored
// at salvage value.
func (e Engine) BookValueAt(a ledger.Asset, asOf time.Time) decimal.Decimal {
	book := a.PurchasePrice.Sub(e.AccumulatedAt(a, asOf))
	if book.LessThan(a.SalvageValue) {
		return a.SalvageValue
	}
	return book
}

// FullyDepreciated reports whether book value has reached salvage.
func (e Engine) FullyDepreciated(a ledger.Asset, asOf time.Time) bool {
	return e.BookValueAt(a, asOf).LessThanOrEqual(a.SalvageValue)
}

// accumulatedWholeMonths sums the first n monthly charges for the asset's
// schedule, capped at the depreciable base.
func (e Engine) accumulatedWholeMonths(a ledger.Asset, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	base := a.DepreciableBase()
	if base.Sign() <= 0 {
		return decimal.Zero
	}
	switch a.Method {
	case ledger.MethodDecliningBalance, ledger.MethodSumOfYears:
		acc := decimal.Zero
		for k := 1; k <= n; k++ {
			charge := e.scheduleCharge(a, k, acc)
			if charge.Sign() <= 0 {
				break
			}
			acc = acc.Add(charge)
			if acc.GreaterThanOrEqual(base) {
				return base
			}
		}
		return acc
	default:
		monthly := e.straightLineMonthly(a)
		acc := monthly.Mul(decimal.NewFromInt(int64(n)))
		if acc.GreaterThan(base) {
			return base
		}
		return acc
	}
}

// chargeForMonthIndex returns the charge for the k-th month of service
// (1-based), zero once the base is exhausted.
func (e Engine) chargeForMonthIndex(a ledger.Asset, k int) decimal.Decimal {
	if k <= 0 {
		return decimal.Zero
	}
	base := a.DepreciableBase()
	if base.Sign() <= 0 {
		return decimal.Zero
	}
	prior := e.accumulatedWholeMonths(a, k-1)
	if prior.GreaterThanOrEqual(base) {
		return decimal.Zero
	}
	charge := e.scheduleCharge(a, k, prior)
	remaining := base.Sub(prior)
	if charge.GreaterThan(remaining) {
		return remaining
	}
	return charge
}

// scheduleCharge computes the raw (rounded) charge for month k given the
// depreciation already accumulated.
func (e Engine) scheduleCharge(a ledger.Asset, k int, accumulated decimal.Decimal) decimal.Decimal {
	life := int64(e.lifeMonths)
	if life <= 0 {
		return decimal.Zero
	}
	base := a.DepreciableBase()
	switch a.Method {
	case ledger.MethodDecliningBalance:
		// Double-declining applied monthly against opening book value,
		// floored at salvage.
		book := a.PurchasePrice.Sub(accumulated)
		rate := decimal.NewFromInt(2).Div(decimal.NewFromInt(life))
		charge := shared.RoundAmount(book.Mul(rate), e.rounding)
		floorRoom := book.Sub(a.SalvageValue)
		if charge.GreaterThan(floorRoom) {
			charge = floorRoom
		}
		if charge.IsNegative() {
			return decimal.Zero
		}
		return charge
	case ledger.MethodSumOfYears:
		// Sum-of-digits over the useful life in months.
		if int64(k) > life {
			return decimal.Zero
		}
		denom := decimal.NewFromInt(life * (life + 1) / 2)
		weight := decimal.NewFromInt(life - int64(k) + 1)
		return shared.RoundAmount(base.Mul(weight).Div(denom), e.rounding)
	default:
		if int64(k) > life {
			return decimal.Zero
		}
		return e.straightLineMonthly(a)
	}
}

func (e Engine) straightLineMonthly(a ledger.Asset) decimal.Decimal {
	life := int64(e.lifeMonths)
	if life <= 0 {
		return decimal.Zero
	}
	return shared.RoundAmount(a.DepreciableBase().Div(decimal.NewFromInt(life)), e.rounding)
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func daysInPreviousMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month(), 0, 0, 0, 0, 0, t.Location()).Day()
}
