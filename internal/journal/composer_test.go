package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/herdledger/herdledger/internal/adjustments"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAsset() ledger.Asset {
	return ledger.Asset{
		ID:              7,
		CompanyID:       1,
		TagNumber:       "A-101",
		BirthDate:       time.Date(2021, time.March, 10, 0, 0, 0, 0, time.UTC),
		FreshenDate:     time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		PurchasePrice:   dec("2500"),
		SalvageValue:    dec("250"),
		Method:          ledger.MethodStraightLine,
		Status:          ledger.StatusActive,
		CurrentValue:    dec("2500"),
		AcquisitionType: ledger.AcquisitionPurchased,
	}
}

func testComposer(t *testing.T) Composer {
	t.Helper()
	return NewComposer(settings.Defaults(1))
}

func TestComposeAcquisitionPurchased(t *testing.T) {
	c := testComposer(t)

	input, err := c.ComposeAcquisition(testAsset())
	require.NoError(t, err)
	require.Equal(t, EntryAcquisition, input.EntryType)
	require.Equal(t, "ACQ|7", input.SourceKey)
	require.Len(t, input.Lines, 2)
	require.Equal(t, "1500", input.Lines[0].AccountCode)
	require.True(t, input.Lines[0].Debit.Equal(dec("2500")))
	require.Equal(t, "1000", input.Lines[1].AccountCode)
	require.True(t, input.Lines[1].Credit.Equal(dec("2500")))
}

func TestComposeAcquisitionRaisedCreditsTransferAccount(t *testing.T) {
	c := testComposer(t)
	a := testAsset()
	a.AcquisitionType = ledger.AcquisitionRaised

	input, err := c.ComposeAcquisition(a)
	require.NoError(t, err)
	require.Equal(t, "3900", input.Lines[1].AccountCode)
}

func TestComposeAcquisitionRejectsZeroPrice(t *testing.T) {
	c := testComposer(t)
	a := testAsset()
	a.PurchasePrice = decimal.Zero

	_, err := c.ComposeAcquisition(a)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestComposeDepreciationMonthlyEntry(t *testing.T) {
	c := testComposer(t)
	first := testAsset()
	second := testAsset()
	second.ID = 8
	second.TagNumber = "A-102"
	period := shared.Period{Year: 2023, Month: time.July}

	input, err := c.ComposeDepreciation(1, []ledger.Asset{first, second}, period, nil)
	require.NoError(t, err)
	require.Equal(t, EntryDepreciation, input.EntryType)
	require.Equal(t, "DEPR|1|2023-07", input.SourceKey)
	require.Len(t, input.Lines, 3)

	require.Equal(t, "6100", input.Lines[0].AccountCode)
	require.True(t, input.Lines[0].Debit.Equal(dec("75.00")))
	for _, line := range input.Lines[1:] {
		require.Equal(t, "1510", line.AccountCode)
		require.True(t, line.Credit.Equal(dec("37.50")))
		require.NotNil(t, line.AssetID)
	}
	require.True(t, input.Total().Equal(dec("75.00")))
}

func TestComposeDepreciationSkipsInactiveAndUnstarted(t *testing.T) {
	c := testComposer(t)
	sold := testAsset()
	sold.Status = ledger.StatusSold
	future := testAsset()
	future.ID = 9
	future.FreshenDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	period := shared.Period{Year: 2023, Month: time.July}

	_, err := c.ComposeDepreciation(1, []ledger.Asset{sold, future}, period, nil)
	require.ErrorIs(t, err, ErrNothingToCompose)
}

func TestComposeDepreciationFoldsAdjustmentPairs(t *testing.T) {
	c := testComposer(t)
	period := shared.Period{Year: 2023, Month: time.July}
	pending := []adjustments.BalanceAdjustment{
		{ID: 1, CompanyID: 1, PriorPeriod: shared.Period{Year: 2023, Month: time.May}, Type: adjustments.TypeDepreciationCorrection, Amount: dec("50")},
		{ID: 2, CompanyID: 1, PriorPeriod: shared.Period{Year: 2023, Month: time.June}, Type: adjustments.TypeDepreciationCorrection, Amount: dec("-30")},
	}

	input, err := c.ComposeDepreciation(1, []ledger.Asset{testAsset()}, period, pending)
	require.NoError(t, err)
	// expense debit + asset credit + two lines per adjustment
	require.Len(t, input.Lines, 6)

	var debit, credit decimal.Decimal
	for _, line := range input.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	require.True(t, debit.Equal(credit))
	require.True(t, debit.Equal(dec("117.50")))

	// The negative correction debits accumulated depreciation.
	last := input.Lines[5]
	require.Equal(t, "6100", last.AccountCode)
	require.True(t, last.Credit.Equal(dec("30")))
}

func TestComposeDepreciationAdjustmentsOnly(t *testing.T) {
	c := testComposer(t)
	period := shared.Period{Year: 2023, Month: time.July}
	pending := []adjustments.BalanceAdjustment{
		{ID: 1, CompanyID: 1, PriorPeriod: shared.Period{Year: 2023, Month: time.June}, Type: adjustments.TypeManual, Amount: dec("12.34")},
	}

	input, err := c.ComposeDepreciation(1, nil, period, pending)
	require.NoError(t, err)
	require.Len(t, input.Lines, 2)
	require.True(t, input.Total().Equal(dec("12.34")))
}

func TestComposeDispositionLoss(t *testing.T) {
	c := testComposer(t)
	facts := DispositionFacts{
		Date:       time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		SaleAmount: dec("2000"),
	}

	input, err := c.ComposeDisposition(testAsset(), facts)
	require.NoError(t, err)
	require.Equal(t, EntryDisposition, input.EntryType)
	require.Equal(t, "DISP|7", input.SourceKey)
	require.Len(t, input.Lines, 4)

	require.Equal(t, "1000", input.Lines[0].AccountCode)
	require.True(t, input.Lines[0].Debit.Equal(dec("2000")))
	require.Equal(t, "1510", input.Lines[1].AccountCode)
	require.True(t, input.Lines[1].Debit.Equal(dec("225.00")))
	require.Equal(t, "1500", input.Lines[2].AccountCode)
	require.True(t, input.Lines[2].Credit.Equal(dec("2500")))
	require.Equal(t, "8200", input.Lines[3].AccountCode)
	require.True(t, input.Lines[3].Debit.Equal(dec("275.00")))
	require.True(t, input.Total().Equal(dec("2500")))
}

func TestComposeDispositionGain(t *testing.T) {
	c := testComposer(t)
	facts := DispositionFacts{
		Date:       time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		SaleAmount: dec("2400"),
	}

	input, err := c.ComposeDisposition(testAsset(), facts)
	require.NoError(t, err)
	last := input.Lines[len(input.Lines)-1]
	require.Equal(t, "8100", last.AccountCode)
	require.True(t, last.Credit.Equal(dec("125.00")))
}

func TestComposeDispositionDeathWithoutProceeds(t *testing.T) {
	c := testComposer(t)
	facts := DispositionFacts{
		Date: time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
	}

	input, err := c.ComposeDisposition(testAsset(), facts)
	require.NoError(t, err)
	// no cash line; accum debit, asset credit, loss debit
	require.Len(t, input.Lines, 3)
	require.Equal(t, "8200", input.Lines[2].AccountCode)
	require.True(t, input.Lines[2].Debit.Equal(dec("2275.00")))
}

func TestComposeDispositionOnFreshenDate(t *testing.T) {
	c := testComposer(t)
	a := testAsset()
	facts := DispositionFacts{
		Date:       a.FreshenDate,
		SaleAmount: dec("2500"),
	}

	input, err := c.ComposeDisposition(a, facts)
	require.NoError(t, err)
	// no depreciation taken yet: cash debit and asset credit only
	require.Len(t, input.Lines, 2)
	require.True(t, input.Total().Equal(dec("2500")))
}

func TestComposeDispositionRejectsNegativeSale(t *testing.T) {
	c := testComposer(t)

	_, err := c.ComposeDisposition(testAsset(), DispositionFacts{
		Date:       time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		SaleAmount: dec("-1"),
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestComposeFailsOnUnmappedAccount(t *testing.T) {
	cfg := settings.Defaults(1)
	delete(cfg.Accounts, settings.RoleDepreciationExpense)
	c := NewComposer(cfg)

	_, err := c.ComposeDepreciation(1, []ledger.Asset{testAsset()}, shared.Period{Year: 2023, Month: time.July}, nil)
	require.ErrorIs(t, err, settings.ErrAccountUnmapped)
}
