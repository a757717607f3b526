package reconcile

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

type stubRepo struct {
	opening   int
	additions map[string]int
	disposals map[string]int
	journal   map[string]decimal.Decimal
	windows   []AssetWindow
	calls     int
}

func (s *stubRepo) CountActiveBefore(context.Context, int64, time.Time) (int, error) {
	s.calls++
	return s.opening, nil
}

func (s *stubRepo) AdditionsIn(_ context.Context, _ int64, period shared.Period) (int, error) {
	return s.additions[period.Code()], nil
}

func (s *stubRepo) DisposalsIn(_ context.Context, _ int64, period shared.Period) (int, error) {
	return s.disposals[period.Code()], nil
}

func (s *stubRepo) JournalDepreciationTotal(_ context.Context, _ int64, period shared.Period) (decimal.Decimal, error) {
	if v, ok := s.journal[period.Code()]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}

func (s *stubRepo) AssetsDepreciableIn(context.Context, int64, int) ([]AssetWindow, error) {
	return s.windows, nil
}

type stubSettings struct{}

func (stubSettings) Get(_ context.Context, companyID int64) (settings.Settings, error) {
	return settings.Defaults(companyID), nil
}

func testAsset() ledger.Asset {
	return ledger.Asset{
		ID:            7,
		CompanyID:     1,
		TagNumber:     "A-101",
		FreshenDate:   time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		PurchasePrice: dec("2500"),
		SalvageValue:  dec("250"),
		Method:        ledger.MethodStraightLine,
		Status:        ledger.StatusActive,
		CurrentValue:  dec("2500"),
	}
}

func testService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, stubSettings{}, client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.WithNow(func() time.Time { return time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC) })
	return svc
}

func TestReconcileYearComputesBalancesAndDrift(t *testing.T) {
	repo := &stubRepo{
		opening:   12,
		additions: map[string]int{"2023-03": 2},
		disposals: map[string]int{"2023-08": 1},
		journal:   map[string]decimal.Decimal{"2023-01": dec("37.50")},
		windows:   []AssetWindow{{Asset: testAsset()}},
	}
	svc := testService(t, repo)

	rows, err := svc.ReconcileYear(context.Background(), 1, 2023)
	require.NoError(t, err)
	require.Len(t, rows, 12)

	require.Equal(t, 12, rows[0].StartingBalance)
	require.Equal(t, 14, rows[2].EndingBalance)
	require.Equal(t, 13, rows[11].EndingBalance)
	for i := 1; i < len(rows); i++ {
		require.Equal(t, rows[i-1].EndingBalance, rows[i].StartingBalance)
	}

	// January's schedule charge matches the posted journal total: no drift.
	require.True(t, rows[0].LedgerDepreciation.Equal(dec("37.50")))
	require.False(t, rows[0].DriftFlagged)

	// February has a schedule charge with no journal entry: flagged.
	require.True(t, rows[1].LedgerDepreciation.Equal(dec("37.50")))
	require.True(t, rows[1].DriftFlagged)
	require.True(t, rows[1].Drift.Equal(dec("-37.50")))
}

func TestDetectDriftReturnsFlaggedRowsOnly(t *testing.T) {
	repo := &stubRepo{
		opening: 12,
		journal: map[string]decimal.Decimal{"2023-01": dec("37.50")},
		windows: []AssetWindow{{Asset: testAsset()}},
	}
	svc := testService(t, repo)

	rows, err := svc.DetectDrift(context.Background(), 1, 2023)
	require.NoError(t, err)
	// January matches the journal, February through December do not.
	require.Len(t, rows, 11)
	require.Equal(t, shared.Period{Year: 2023, Month: time.February}, rows[0].Period)
	for _, row := range rows {
		require.True(t, row.DriftFlagged)
	}
}

func TestReconcileYearStopsAtCurrentMonth(t *testing.T) {
	repo := &stubRepo{opening: 3}
	svc := testService(t, repo)

	rows, err := svc.ReconcileYear(context.Background(), 1, 2024)
	require.NoError(t, err)
	require.Len(t, rows, 6)
}

func TestReconcileYearCaches(t *testing.T) {
	repo := &stubRepo{opening: 3}
	svc := testService(t, repo)

	_, err := svc.ReconcileYear(context.Background(), 1, 2023)
	require.NoError(t, err)
	_, err = svc.ReconcileYear(context.Background(), 1, 2023)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	svc.Invalidate(context.Background(), 1, 2023)
	_, err = svc.ReconcileYear(context.Background(), 1, 2023)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestReconcileMonth(t *testing.T) {
	repo := &stubRepo{opening: 5, additions: map[string]int{"2023-04": 1}}
	svc := testService(t, repo)

	row, err := svc.ReconcileMonth(context.Background(), 1, shared.Period{Year: 2023, Month: time.April})
	require.NoError(t, err)
	require.Equal(t, 5, row.StartingBalance)
	require.Equal(t, 6, row.EndingBalance)

	_, err = svc.ReconcileMonth(context.Background(), 1, shared.Period{Year: 2023, Month: 13})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestScheduleTotalSkipsDisposalMonth(t *testing.T) {
	disposed := time.Date(2023, time.May, 10, 0, 0, 0, 0, time.UTC)
	repo := &stubRepo{
		opening: 1,
		windows: []AssetWindow{{Asset: testAsset(), DisposedAt: &disposed}},
	}
	svc := testService(t, repo)

	rows, err := svc.ReconcileYear(context.Background(), 1, 2023)
	require.NoError(t, err)
	// April still accrues, May (the disposal month) and later do not
	require.True(t, rows[3].LedgerDepreciation.Equal(dec("37.50")))
	require.True(t, rows[4].LedgerDepreciation.IsZero())
	require.True(t, rows[5].LedgerDepreciation.IsZero())
}

func TestWriteCSV(t *testing.T) {
	rows := BuildRows(1200, []MonthFacts{
		{
			Period:              shared.Period{Year: 2023, Month: time.January},
			Additions:           5,
			JournalDepreciation: dec("100.00"),
			LedgerDepreciation:  dec("100.00"),
		},
	})
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, 1, 2023, rows))

	out := buf.String()
	require.Contains(t, out, "# Herd reconciliation, company 1, year 2023")
	require.Contains(t, out, "2023-01")
	require.Contains(t, out, "1,200")
	require.Contains(t, out, "TOTAL")
	require.Equal(t, 4, strings.Count(out, "\r\n"))
}
