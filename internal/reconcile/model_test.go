package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/herdledger/herdledger/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuildRowsContinuity(t *testing.T) {
	months := make([]MonthFacts, 0, 12)
	additions := []int{3, 0, 5, 2, 0, 1, 4, 0, 0, 2, 1, 6}
	disposals := []int{0, 1, 0, 3, 1, 0, 2, 0, 1, 0, 0, 2}
	for m := time.January; m <= time.December; m++ {
		months = append(months, MonthFacts{
			Period:    shared.Period{Year: 2024, Month: m},
			Additions: additions[m-1],
			Disposals: disposals[m-1],
		})
	}

	rows := BuildRows(40, months)
	require.Len(t, rows, 12)
	require.Equal(t, 40, rows[0].StartingBalance)
	for i := 1; i < len(rows); i++ {
		require.Equal(t, rows[i-1].EndingBalance, rows[i].StartingBalance,
			"month %s must start where %s ended", rows[i].Period.Code(), rows[i-1].Period.Code())
	}
	for _, row := range rows {
		require.Equal(t, row.StartingBalance+row.Additions-row.Disposals, row.EndingBalance)
	}
}

func TestBuildRowsDriftFlag(t *testing.T) {
	rows := BuildRows(10, []MonthFacts{
		{
			Period:              shared.Period{Year: 2024, Month: time.January},
			JournalDepreciation: dec("100.00"),
			LedgerDepreciation:  dec("100.01"),
		},
		{
			Period:              shared.Period{Year: 2024, Month: time.February},
			JournalDepreciation: dec("100.00"),
			LedgerDepreciation:  dec("100.02"),
		},
	})

	// a cent of difference is tolerated, anything beyond is flagged
	require.False(t, rows[0].DriftFlagged)
	require.True(t, rows[1].DriftFlagged)
	require.True(t, rows[1].Drift.Equal(dec("-0.02")))
}

func TestBuildRowsEmpty(t *testing.T) {
	require.Empty(t, BuildRows(5, nil))
}
