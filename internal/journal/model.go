package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// EntryType classifies the event a journal entry records.
type EntryType string

const (
	EntryAcquisition  EntryType = "ACQUISITION"
	EntryDepreciation EntryType = "DEPRECIATION"
	EntryDisposition  EntryType = "DISPOSITION"
	EntryAdjustment   EntryType = "ADJUSTMENT"
)

// EntryStatus enumerates entry lifecycle values. Posted entries are immutable
// except through the atomic line-replacement path used by integrity repair.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "DRAFT"
	StatusPosted   EntryStatus = "POSTED"
	StatusExported EntryStatus = "EXPORTED"
)

// LineType marks which side of the entry a line sits on.
type LineType string

const (
	LineDebit  LineType = "DEBIT"
	LineCredit LineType = "CREDIT"
)

// JournalEntry captures posting metadata for one balanced event.
type JournalEntry struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	EntryDate   time.Time       `json:"entry_date"`
	Period      shared.Period   `json:"period"`
	EntryType   EntryType       `json:"entry_type"`
	Description string          `json:"description"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      EntryStatus     `json:"status"`
	SourceID    uuid.UUID       `json:"source_id"`
	SourceKey   string          `json:"source_key"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Lines       []JournalLine   `json:"lines,omitempty"`
}

// JournalLine stores a debit or credit amount for an account. AssetID is a
// weak reference used for lookups only; it may dangle if the asset record is
// later purged.
type JournalLine struct {
	ID             int64           `json:"id"`
	JournalEntryID int64           `json:"journal_entry_id"`
	AccountCode    string          `json:"account_code"`
	AccountName    string          `json:"account_name"`
	Description    string          `json:"description,omitempty"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	LineType       LineType        `json:"line_type"`
	AssetID        *int64          `json:"asset_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Totals sums debits and credits across the entry's lines.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	for _, line := range e.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Balanced reports whether debits equal credits to the cent.
func (e JournalEntry) Balanced() bool {
	debit, credit := e.Totals()
	return shared.WithinCent(debit, credit)
}
