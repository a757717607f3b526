package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// Row is one month of the reconciliation report. Balances are herd counts;
// the depreciation columns compare the journal-derived total against the
// schedule-derived total for the same month.
type Row struct {
	Period              shared.Period   `json:"period"`
	StartingBalance     int             `json:"starting_balance"`
	Additions           int             `json:"additions"`
	Disposals           int             `json:"disposals"`
	EndingBalance       int             `json:"ending_balance"`
	JournalDepreciation decimal.Decimal `json:"journal_depreciation"`
	LedgerDepreciation  decimal.Decimal `json:"ledger_depreciation"`
	Drift               decimal.Decimal `json:"drift"`
	DriftFlagged        bool            `json:"drift_flagged"`
}

// MonthFacts is the raw input for one month of the report.
type MonthFacts struct {
	Period              shared.Period
	Additions           int
	Disposals           int
	JournalDepreciation decimal.Decimal
	LedgerDepreciation  decimal.Decimal
}

// BuildRows is the single authoritative balance computation. Each month's
// starting balance is the prior month's ending balance; the first month
// starts from the supplied opening count. Drift beyond a cent is flagged.
func BuildRows(opening int, months []MonthFacts) []Row {
	rows := make([]Row, 0, len(months))
	balance := opening
	for _, m := range months {
		drift := m.JournalDepreciation.Sub(m.LedgerDepreciation)
		row := Row{
			Period:              m.Period,
			StartingBalance:     balance,
			Additions:           m.Additions,
			Disposals:           m.Disposals,
			EndingBalance:       balance + m.Additions - m.Disposals,
			JournalDepreciation: m.JournalDepreciation,
			LedgerDepreciation:  m.LedgerDepreciation,
			Drift:               drift,
			DriftFlagged:        drift.Abs().GreaterThan(shared.CentTolerance),
		}
		rows = append(rows, row)
		balance = row.EndingBalance
	}
	return rows
}
