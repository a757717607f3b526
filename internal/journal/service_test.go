package journal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/herdledger/herdledger/internal/adjustments"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

type memRepo struct {
	entries    map[int64]JournalEntry
	lines      map[int64][]JournalLine
	sourceKeys map[string]int64
	applied    map[int64]int64
	assets     map[int64][2]decimal.Decimal
	nextEntry  int64
	nextLine   int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		entries:    map[int64]JournalEntry{},
		lines:      map[int64][]JournalLine{},
		sourceKeys: map[string]int64{},
		applied:    map[int64]int64{},
		assets:     map[int64][2]decimal.Decimal{},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) InsertEntry(_ context.Context, in EntryInput, status EntryStatus) (JournalEntry, error) {
	if _, dup := m.sourceKeys[in.SourceKey]; dup {
		return JournalEntry{}, ErrSourceConflict
	}
	m.nextEntry++
	entry := JournalEntry{
		ID:          m.nextEntry,
		CompanyID:   in.CompanyID,
		EntryDate:   in.EntryDate,
		Period:      in.Period,
		EntryType:   in.EntryType,
		Description: in.Description,
		TotalAmount: in.Total(),
		Status:      status,
		SourceID:    in.SourceID,
		SourceKey:   in.SourceKey,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.entries[entry.ID] = entry
	m.sourceKeys[in.SourceKey] = entry.ID
	return entry, nil
}

func (m *memRepo) InsertLines(_ context.Context, entryID int64, lines []LineInput) error {
	for _, in := range lines {
		m.nextLine++
		m.lines[entryID] = append(m.lines[entryID], JournalLine{
			ID:             m.nextLine,
			JournalEntryID: entryID,
			AccountCode:    in.AccountCode,
			AccountName:    in.AccountName,
			Description:    in.Description,
			Debit:          in.Debit,
			Credit:         in.Credit,
			LineType:       in.Type(),
			AssetID:        in.AssetID,
		})
	}
	return nil
}

func (m *memRepo) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput, total decimal.Decimal) error {
	entry, ok := m.entries[entryID]
	if !ok {
		return shared.ErrNotFound
	}
	m.lines[entryID] = nil
	if err := m.InsertLines(ctx, entryID, lines); err != nil {
		return err
	}
	entry.TotalAmount = total
	m.entries[entryID] = entry
	return nil
}

func (m *memRepo) DeleteEntry(_ context.Context, entryID int64) error {
	entry, ok := m.entries[entryID]
	if !ok {
		return shared.ErrNotFound
	}
	delete(m.entries, entryID)
	delete(m.lines, entryID)
	delete(m.sourceKeys, entry.SourceKey)
	return nil
}

func (m *memRepo) MarkAdjustmentsApplied(_ context.Context, ids []int64, entryID int64) error {
	for _, id := range ids {
		m.applied[id] = entryID
	}
	return nil
}

func (m *memRepo) UpdateAssetDepreciation(_ context.Context, assetID int64, currentValue, totalDepreciation decimal.Decimal) error {
	m.assets[assetID] = [2]decimal.Decimal{currentValue, totalDepreciation}
	return nil
}

func (m *memRepo) GetEntryWithLines(_ context.Context, companyID, entryID int64) (JournalEntry, error) {
	entry, ok := m.entries[entryID]
	if !ok || entry.CompanyID != companyID {
		return JournalEntry{}, shared.ErrNotFound
	}
	entry.Lines = m.lines[entryID]
	return entry, nil
}

func (m *memRepo) ListByPeriod(_ context.Context, companyID int64, period shared.Period) ([]JournalEntry, error) {
	var out []JournalEntry
	for id := int64(1); id <= m.nextEntry; id++ {
		entry, ok := m.entries[id]
		if !ok || entry.CompanyID != companyID || entry.Period != period {
			continue
		}
		entry.Lines = m.lines[id]
		out = append(out, entry)
	}
	return out, nil
}

func (m *memRepo) HasDepreciationLine(_ context.Context, companyID, assetID int64, period shared.Period) (bool, error) {
	for id, entry := range m.entries {
		if entry.CompanyID != companyID || entry.EntryType != EntryDepreciation || entry.Period != period {
			continue
		}
		for _, line := range m.lines[id] {
			if line.AssetID != nil && *line.AssetID == assetID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memRepo) DepreciationTotal(_ context.Context, companyID int64, period shared.Period) (decimal.Decimal, error) {
	total := decimal.Zero
	for id, entry := range m.entries {
		if entry.CompanyID != companyID || entry.EntryType != EntryDepreciation || entry.Period != period {
			continue
		}
		for _, line := range m.lines[id] {
			if line.AssetID != nil {
				total = total.Add(line.Credit).Sub(line.Debit)
			}
		}
	}
	return total, nil
}

type stubSettings struct{}

func (stubSettings) Get(_ context.Context, companyID int64) (settings.Settings, error) {
	return settings.Defaults(companyID), nil
}

type stubAudit struct {
	actions []string
}

func (a *stubAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type stubAssets struct {
	list []ledger.Asset
}

func (s *stubAssets) ListActive(context.Context, int64) ([]ledger.Asset, error) {
	return s.list, nil
}

type stubPending struct {
	list []adjustments.BalanceAdjustment
}

func (s *stubPending) ListPending(context.Context, int64) ([]adjustments.BalanceAdjustment, error) {
	return s.list, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func balancedInput(sourceKey string) EntryInput {
	return EntryInput{
		CompanyID:   1,
		EntryDate:   time.Date(2023, time.July, 31, 0, 0, 0, 0, time.UTC),
		Period:      shared.Period{Year: 2023, Month: time.July},
		EntryType:   EntryAdjustment,
		Description: "test entry",
		SourceID:    uuid.New(),
		SourceKey:   sourceKey,
		Lines: []LineInput{
			{AccountCode: "6100", AccountName: "Depreciation Expense", Debit: dec("40")},
			{AccountCode: "1510", AccountName: "Accumulated Depreciation", Credit: dec("40")},
		},
	}
}

func TestPostEntryStoresEntryAndLines(t *testing.T) {
	repo := newMemRepo()
	audit := &stubAudit{}
	svc := NewService(repo, stubSettings{}, audit, testLogger())

	entry, err := svc.PostEntry(context.Background(), balancedInput("ADJ|1"))
	require.NoError(t, err)
	require.Equal(t, StatusPosted, entry.Status)

	stored, err := svc.GetEntry(context.Background(), 1, entry.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	require.True(t, stored.Balanced())
	require.Equal(t, []string{"journal.post"}, audit.actions)
}

func TestPostEntryRejectsUnbalanced(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, stubSettings{}, nil, testLogger())

	in := balancedInput("ADJ|2")
	in.Lines[1].Credit = dec("39.99")
	_, err := svc.PostEntry(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrUnbalancedEntry)
	require.Empty(t, repo.entries)
}

func TestPostEntryDuplicateSourceKey(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, stubSettings{}, nil, testLogger())

	_, err := svc.PostEntry(context.Background(), balancedInput("ADJ|3"))
	require.NoError(t, err)
	_, err = svc.PostEntry(context.Background(), balancedInput("ADJ|3"))
	require.ErrorIs(t, err, ErrSourceConflict)
	require.Len(t, repo.entries, 1)
}

func TestAcquisitionAdapterPostsOnce(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, stubSettings{}, nil, testLogger())
	adapter := NewAcquisitionAdapter(stubSettings{}, svc)

	entryID, err := adapter.PostAcquisition(context.Background(), testAsset())
	require.NoError(t, err)
	require.NotZero(t, entryID)

	// reposting the same asset is a no-op, not an error
	again, err := adapter.PostAcquisition(context.Background(), testAsset())
	require.NoError(t, err)
	require.Zero(t, again)
	require.Len(t, repo.entries, 1)
}

func TestMonthlyRunnerPostsAndUpdatesState(t *testing.T) {
	repo := newMemRepo()
	audit := &stubAudit{}
	assets := &stubAssets{list: []ledger.Asset{testAsset()}}
	pending := &stubPending{list: []adjustments.BalanceAdjustment{
		{ID: 11, CompanyID: 1, PriorPeriod: shared.Period{Year: 2023, Month: time.June}, Type: adjustments.TypeDepreciationCorrection, Amount: dec("50")},
	}}
	runner := NewMonthlyRunner(repo, assets, pending, stubSettings{}, audit, testLogger())
	period := shared.Period{Year: 2023, Month: time.July}

	entry, err := runner.PostMonth(context.Background(), 1, period)
	require.NoError(t, err)
	require.Equal(t, "DEPR|1|2023-07", entry.SourceKey)
	require.True(t, entry.TotalAmount.Equal(dec("87.50")))
	require.Len(t, entry.Lines, 4)

	// the adjustment is marked applied against this entry
	require.Equal(t, entry.ID, repo.applied[11])

	// asset balances advance through the end of July: 7 months at 37.50
	balances, ok := repo.assets[7]
	require.True(t, ok)
	require.True(t, balances[0].Equal(dec("2237.50")))
	require.True(t, balances[1].Equal(dec("262.50")))
}

func TestMonthlyRunnerIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	assets := &stubAssets{list: []ledger.Asset{testAsset()}}
	runner := NewMonthlyRunner(repo, assets, &stubPending{}, stubSettings{}, nil, testLogger())
	period := shared.Period{Year: 2023, Month: time.July}

	_, err := runner.PostMonth(context.Background(), 1, period)
	require.NoError(t, err)
	_, err = runner.PostMonth(context.Background(), 1, period)
	require.ErrorIs(t, err, ErrSourceConflict)
	require.Len(t, repo.entries, 1)
}

func TestMonthlyRunnerSkipsAssetsAlreadyBackfilled(t *testing.T) {
	repo := newMemRepo()
	first := testAsset()
	second := testAsset()
	second.ID = 8
	second.TagNumber = "A-102"
	period := shared.Period{Year: 2023, Month: time.July}

	// A catch-up run already posted July for the first asset.
	svc := NewService(repo, stubSettings{}, nil, testLogger())
	input, err := NewComposer(settings.Defaults(1)).ComposeCatchup(first, period)
	require.NoError(t, err)
	_, err = svc.PostEntry(context.Background(), input)
	require.NoError(t, err)

	assets := &stubAssets{list: []ledger.Asset{first, second}}
	runner := NewMonthlyRunner(repo, assets, &stubPending{}, stubSettings{}, nil, testLogger())
	entry, err := runner.PostMonth(context.Background(), 1, period)
	require.NoError(t, err)

	// Only the second asset is charged.
	require.True(t, entry.TotalAmount.Equal(dec("37.50")))
	for _, line := range entry.Lines {
		if line.AssetID != nil {
			require.Equal(t, int64(8), *line.AssetID)
		}
	}

	total, err := repo.DepreciationTotal(context.Background(), 1, period)
	require.NoError(t, err)
	require.True(t, total.Equal(dec("75.00")))
}

func TestMonthlyRunnerNothingLeftAfterBackfill(t *testing.T) {
	repo := newMemRepo()
	asset := testAsset()
	period := shared.Period{Year: 2023, Month: time.July}

	svc := NewService(repo, stubSettings{}, nil, testLogger())
	input, err := NewComposer(settings.Defaults(1)).ComposeCatchup(asset, period)
	require.NoError(t, err)
	_, err = svc.PostEntry(context.Background(), input)
	require.NoError(t, err)

	runner := NewMonthlyRunner(repo, &stubAssets{list: []ledger.Asset{asset}}, &stubPending{}, stubSettings{}, nil, testLogger())
	_, err = runner.PostMonth(context.Background(), 1, period)
	require.ErrorIs(t, err, ErrNothingToCompose)
	require.Len(t, repo.entries, 1)
}

func TestMonthlyRunnerNothingDue(t *testing.T) {
	repo := newMemRepo()
	runner := NewMonthlyRunner(repo, &stubAssets{}, &stubPending{}, stubSettings{}, nil, testLogger())

	_, err := runner.PostMonth(context.Background(), 1, shared.Period{Year: 2023, Month: time.July})
	require.ErrorIs(t, err, ErrNothingToCompose)
	require.Empty(t, repo.entries)
}
