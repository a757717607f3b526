package integrity

import (
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/shared"
)

// Finding describes one entry whose lines fail the balance invariant or that
// has too few lines to mean anything.
type Finding struct {
	EntryID   int64             `json:"entry_id"`
	EntryType journal.EntryType `json:"entry_type"`
	LineCount int               `json:"line_count"`
	Debits    decimal.Decimal   `json:"debits"`
	Credits   decimal.Decimal   `json:"credits"`
	Variance  decimal.Decimal   `json:"variance"`
}

// Orphan reports whether the entry cannot be repaired structurally: an entry
// with one line or none has no counterpart to rebalance against.
func (f Finding) Orphan() bool {
	return f.LineCount <= 1
}

// Report enumerates every finding for a period.
type Report struct {
	Period   shared.Period `json:"period"`
	Findings []Finding     `json:"findings"`
}

// RepairOutcome summarises a repair pass.
type RepairOutcome struct {
	Period         shared.Period `json:"period"`
	Findings       int           `json:"findings"`
	OrphansDeleted int           `json:"orphans_deleted"`
	Repaired       int           `json:"repaired"`
	Skipped        []string      `json:"skipped,omitempty"`
}
