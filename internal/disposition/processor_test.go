package disposition

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memRepo struct {
	assets       map[int64]ledger.Asset
	dispositions map[int64]Disposition
	entries      []journal.EntryInput
	sourceKeys   map[string]bool
	nextID       int64
}

func newMemRepo(assets ...ledger.Asset) *memRepo {
	m := &memRepo{
		assets:       map[int64]ledger.Asset{},
		dispositions: map[int64]Disposition{},
		sourceKeys:   map[string]bool{},
	}
	for _, a := range assets {
		m.assets[a.ID] = a
	}
	return m
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) GetAssetForUpdate(_ context.Context, companyID, assetID int64) (ledger.Asset, error) {
	a, ok := m.assets[assetID]
	if !ok || a.CompanyID != companyID {
		return ledger.Asset{}, shared.ErrNotFound
	}
	return a, nil
}

func (m *memRepo) InsertDisposition(_ context.Context, d Disposition) (Disposition, error) {
	for _, existing := range m.dispositions {
		if existing.AssetID == d.AssetID {
			return Disposition{}, shared.ErrInvalidState
		}
	}
	m.nextID++
	d.ID = m.nextID
	d.CreatedAt = time.Now()
	m.dispositions[d.ID] = d
	return d, nil
}

func (m *memRepo) InsertJournalEntry(_ context.Context, in journal.EntryInput) (int64, error) {
	if m.sourceKeys[in.SourceKey] {
		return 0, journal.ErrSourceConflict
	}
	m.sourceKeys[in.SourceKey] = true
	m.entries = append(m.entries, in)
	return int64(len(m.entries)), nil
}

func (m *memRepo) TransitionAsset(_ context.Context, assetID int64, status ledger.Status, currentValue, totalDepreciation decimal.Decimal) error {
	a, ok := m.assets[assetID]
	if !ok || a.Status != ledger.StatusActive {
		return shared.ErrInvalidState
	}
	a.Status = status
	a.CurrentValue = currentValue
	a.TotalDepreciation = totalDepreciation
	m.assets[assetID] = a
	return nil
}

func (m *memRepo) GetByAsset(_ context.Context, companyID, assetID int64) (Disposition, error) {
	for _, d := range m.dispositions {
		if d.CompanyID == companyID && d.AssetID == assetID {
			return d, nil
		}
	}
	return Disposition{}, shared.ErrNotFound
}

func (m *memRepo) ListInPeriod(_ context.Context, companyID int64, period shared.Period) ([]Disposition, error) {
	var out []Disposition
	for _, d := range m.dispositions {
		if d.CompanyID == companyID && period.Contains(d.Date) {
			out = append(out, d)
		}
	}
	return out, nil
}

type stubSettings struct{}

func (stubSettings) Get(_ context.Context, companyID int64) (settings.Settings, error) {
	return settings.Defaults(companyID), nil
}

func testAsset() ledger.Asset {
	return ledger.Asset{
		ID:              7,
		CompanyID:       1,
		TagNumber:       "A-101",
		FreshenDate:     time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		PurchasePrice:   dec("2500"),
		SalvageValue:    dec("250"),
		Method:          ledger.MethodStraightLine,
		Status:          ledger.StatusActive,
		CurrentValue:    dec("2500"),
		AcquisitionType: ledger.AcquisitionPurchased,
	}
}

func testProcessor(repo *memRepo) *Processor {
	return NewProcessor(repo, stubSettings{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestProcessSaleAtLoss(t *testing.T) {
	repo := newMemRepo(testAsset())
	p := testProcessor(repo)

	result, err := p.Process(context.Background(), DisposeInput{
		CompanyID:  1,
		AssetID:    7,
		Cause:      CauseSale,
		Date:       time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		SaleAmount: dec("2000"),
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.FinalBookValue.Equal(dec("2275.00")))
	require.True(t, result.GainLoss.Equal(dec("-275.00")))

	asset := repo.assets[7]
	require.Equal(t, ledger.StatusSold, asset.Status)
	require.True(t, asset.TotalDepreciation.Equal(dec("225.00")))
	require.True(t, asset.CurrentValue.Equal(dec("2275.00")))

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	require.Equal(t, journal.EntryDisposition, entry.EntryType)
	var debit, credit decimal.Decimal
	for _, line := range entry.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	require.True(t, debit.Equal(dec("2500")))
	require.True(t, credit.Equal(dec("2500")))
}

func TestProcessDeathAndCullingStatuses(t *testing.T) {
	cases := []struct {
		cause  Cause
		status ledger.Status
	}{
		{CauseDeath, ledger.StatusDeceased},
		{CauseCulled, ledger.StatusRetired},
	}
	for _, tc := range cases {
		repo := newMemRepo(testAsset())
		p := testProcessor(repo)

		result, err := p.Process(context.Background(), DisposeInput{
			CompanyID: 1,
			AssetID:   7,
			Cause:     tc.cause,
			Date:      time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, tc.status, repo.assets[7].Status)
	}
}

func TestProcessOnFreshenDate(t *testing.T) {
	repo := newMemRepo(testAsset())
	p := testProcessor(repo)

	result, err := p.Process(context.Background(), DisposeInput{
		CompanyID:  1,
		AssetID:    7,
		Cause:      CauseSale,
		Date:       time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		SaleAmount: dec("2500"),
	})
	require.NoError(t, err)
	// no depreciation taken yet: book value equals purchase price
	require.True(t, result.FinalBookValue.Equal(dec("2500")))
	require.True(t, result.GainLoss.IsZero())
	require.True(t, repo.assets[7].TotalDepreciation.IsZero())
}

func TestProcessRejectsDisposedAsset(t *testing.T) {
	a := testAsset()
	a.Status = ledger.StatusSold
	repo := newMemRepo(a)
	p := testProcessor(repo)

	result, err := p.Process(context.Background(), DisposeInput{
		CompanyID:  1,
		AssetID:    7,
		Cause:      CauseSale,
		Date:       time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		SaleAmount: dec("100"),
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.False(t, result.Success)
	require.Empty(t, repo.entries)
}

func TestProcessRejectsDateBeforeFreshen(t *testing.T) {
	repo := newMemRepo(testAsset())
	p := testProcessor(repo)

	_, err := p.Process(context.Background(), DisposeInput{
		CompanyID: 1,
		AssetID:   7,
		Cause:     CauseDeath,
		Date:      time.Date(2022, time.December, 15, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestProcessRejectsNegativeSale(t *testing.T) {
	repo := newMemRepo(testAsset())
	p := testProcessor(repo)

	_, err := p.Process(context.Background(), DisposeInput{
		CompanyID:  1,
		AssetID:    7,
		Cause:      CauseSale,
		Date:       time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		SaleAmount: dec("-5"),
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestProcessUnknownAsset(t *testing.T) {
	repo := newMemRepo()
	p := testProcessor(repo)

	_, err := p.Process(context.Background(), DisposeInput{
		CompanyID:  1,
		AssetID:    99,
		Cause:      CauseSale,
		Date:       time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC),
		SaleAmount: dec("100"),
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
