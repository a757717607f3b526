package depreciation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

func testAsset(method ledger.Method) ledger.Asset {
	return ledger.Asset{
		ID:              1,
		CompanyID:       1,
		TagNumber:       "A-100",
		FreshenDate:     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		PurchasePrice:   decimal.RequireFromString("2500"),
		SalvageValue:    decimal.RequireFromString("250"),
		Method:          method,
		Status:          ledger.StatusActive,
		CurrentValue:    decimal.RequireFromString("2500"),
		AcquisitionType: ledger.AcquisitionPurchased,
	}
}

func newTestEngine() Engine {
	return NewEngine(settings.Defaults(1))
}

func TestStraightLineSixMonths(t *testing.T) {
	// $2,500 purchase, $250 salvage, 60-month life, freshened 2023-01-01.
	engine := newTestEngine()
	a := testAsset(ledger.MethodStraightLine)
	asOf := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, "37.50", engine.MonthlyDepreciation(a, asOf).StringFixed(2))
	require.Equal(t, "225.00", engine.AccumulatedAt(a, asOf).StringFixed(2))
	require.Equal(t, "2275.00", engine.BookValueAt(a, asOf).StringFixed(2))
}

func TestZeroBeforeFreshenDate(t *testing.T) {
	engine := newTestEngine()
	a := testAsset(ledger.MethodStraightLine)
	before := a.FreshenDate.AddDate(0, -1, 0)

	require.True(t, engine.MonthlyDepreciation(a, before).IsZero())
	require.True(t, engine.AccumulatedAt(a, before).IsZero())
	require.Equal(t, "2500.00", engine.BookValueAt(a, before).StringFixed(2))
}

func TestFreshenDateBoundary(t *testing.T) {
	// An asset disposed the day it freshened has no accumulated depreciation.
	engine := newTestEngine()
	a := testAsset(ledger.MethodStraightLine)

	require.True(t, engine.AccumulatedAt(a, a.FreshenDate).IsZero())
	require.Equal(t, a.PurchasePrice.StringFixed(2), engine.BookValueAt(a, a.FreshenDate).StringFixed(2))
}

func TestDisposalMonthAccruesNothing(t *testing.T) {
	// Day-of-month is ignored: mid-July disposal carries the same accumulated
	// depreciation as July 1st.
	engine := newTestEngine()
	a := testAsset(ledger.MethodStraightLine)
	first := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2023, 7, 19, 0, 0, 0, 0, time.UTC)

	require.True(t, engine.AccumulatedAt(a, first).Equal(engine.AccumulatedAt(a, mid)))
}

func TestAccumulatedCapsAtDepreciableBase(t *testing.T) {
	engine := newTestEngine()
	a := testAsset(ledger.MethodStraightLine)
	far := a.FreshenDate.AddDate(20, 0, 0)

	require.Equal(t, "2250.00", engine.AccumulatedAt(a, far).StringFixed(2))
	require.Equal(t, "250.00", engine.BookValueAt(a, far).StringFixed(2))
	require.True(t, engine.FullyDepreciated(a, far))
	require.True(t, engine.MonthlyDepreciation(a, far).IsZero())
}

func TestChargeForPeriod(t *testing.T) {
	engine := newTestEngine()
	a := testAsset(ledger.MethodStraightLine)

	july := shared.Period{Year: 2023, Month: time.July}
	require.Equal(t, "37.50", engine.ChargeForPeriod(a, july).StringFixed(2))

	// The month before freshening accrues nothing.
	dec22 := shared.Period{Year: 2022, Month: time.December}
	require.True(t, engine.ChargeForPeriod(a, dec22).IsZero())

	// The final month of life charges only the remaining base.
	last := shared.Period{Year: 2027, Month: time.December}
	require.Equal(t, "37.50", engine.ChargeForPeriod(a, last).StringFixed(2))
	after := shared.Period{Year: 2028, Month: time.January}
	require.True(t, engine.ChargeForPeriod(a, after).IsZero())
}

func TestDecliningBalanceFrontLoads(t *testing.T) {
	engine := newTestEngine()
	a := testAsset(ledger.MethodDecliningBalance)
	jan := shared.Period{Year: 2023, Month: time.January}
	feb := shared.Period{Year: 2023, Month: time.February}

	// 2/60 of opening book value: 2500 * 0.0333... = 83.33.
	first := engine.ChargeForPeriod(a, jan)
	second := engine.ChargeForPeriod(a, feb)
	require.Equal(t, "83.33", first.StringFixed(2))
	require.True(t, second.LessThan(first))

	far := a.FreshenDate.AddDate(30, 0, 0)
	require.True(t, engine.AccumulatedAt(a, far).LessThanOrEqual(a.DepreciableBase()))
	require.True(t, engine.BookValueAt(a, far).GreaterThanOrEqual(a.SalvageValue))
}

func TestSumOfYearsDecreasesLinearly(t *testing.T) {
	engine := newTestEngine()
	a := testAsset(ledger.MethodSumOfYears)
	jan := shared.Period{Year: 2023, Month: time.January}
	feb := shared.Period{Year: 2023, Month: time.February}

	// Denominator 60*61/2 = 1830; first month weight 60: 2250*60/1830 = 73.77.
	require.Equal(t, "73.77", engine.ChargeForPeriod(a, jan).StringFixed(2))
	// Second month weight 59.
	require.Equal(t, "72.54", engine.ChargeForPeriod(a, feb).StringFixed(2))

	far := a.FreshenDate.AddDate(10, 0, 0)
	require.Equal(t, a.DepreciableBase().StringFixed(2), engine.AccumulatedAt(a, far).StringFixed(2))
}

func TestWholeUnitRounding(t *testing.T) {
	cfg := settings.Defaults(1)
	cfg.Rounding = shared.RoundWhole
	engine := NewEngine(cfg)
	a := testAsset(ledger.MethodStraightLine)
	asOf := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)

	// 2250/60 = 37.50 rounds half away from zero to 38.
	require.Equal(t, "38", engine.MonthlyDepreciation(a, asOf).String())
	require.Equal(t, "228", engine.AccumulatedAt(a, asOf).String())
}

func TestPartialMonthProration(t *testing.T) {
	cfg := settings.Defaults(1)
	cfg.PartialMonths = true
	engine := NewEngine(cfg)
	a := testAsset(ledger.MethodStraightLine)

	// 6 whole months plus 15/31 of July.
	asOf := time.Date(2023, 7, 16, 0, 0, 0, 0, time.UTC)
	elapsed := engine.MonthsElapsed(a.FreshenDate, asOf)
	require.Equal(t, "6.48", elapsed.Round(2).StringFixed(2))

	acc := engine.AccumulatedAt(a, asOf)
	require.True(t, acc.GreaterThan(decimal.RequireFromString("225")))
	require.True(t, acc.LessThan(decimal.RequireFromString("262.50")))
}

func TestProrationAcrossMonthBoundary(t *testing.T) {
	cfg := settings.Defaults(1)
	cfg.PartialMonths = true
	engine := NewEngine(cfg)
	freshen := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)

	// One day into February is a sliver of a month, not zero.
	elapsed := engine.MonthsElapsed(freshen, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, elapsed.IsPositive())
	require.True(t, elapsed.LessThan(decimal.RequireFromString("0.1")))

	// 31 days after freshening lands on exactly one month.
	elapsed = engine.MonthsElapsed(freshen, time.Date(2023, 3, 3, 0, 0, 0, 0, time.UTC))
	require.True(t, elapsed.Equal(decimal.NewFromInt(1)))

	// Still zero before the freshen date.
	require.True(t, engine.MonthsElapsed(freshen, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)).IsZero())
}
