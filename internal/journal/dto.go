package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// LineInput describes one journal line for posting.
type LineInput struct {
	AccountCode string
	AccountName string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	AssetID     *int64
}

// Type derives the line side from the populated amount.
func (in LineInput) Type() LineType {
	if in.Credit.Sign() > 0 {
		return LineCredit
	}
	return LineDebit
}

// EntryInput groups the fields required to post a journal entry. SourceKey is
// a deterministic idempotency key; posting the same key twice is rejected by
// a unique constraint.
type EntryInput struct {
	CompanyID   int64
	EntryDate   time.Time
	Period      shared.Period
	EntryType   EntryType
	Description string
	SourceID    uuid.UUID
	SourceKey   string
	Lines       []LineInput
}

// Validate enforces the posting contract. The balance invariant is checked
// here, at composition/posting time, so an unbalanced entry can never reach
// the store.
func (in EntryInput) Validate() error {
	if in.CompanyID == 0 {
		return fmt.Errorf("journal: %w: company id required", shared.ErrInvalidInput)
	}
	if in.EntryDate.IsZero() {
		return fmt.Errorf("journal: %w: entry date required", shared.ErrInvalidInput)
	}
	if in.Period.IsZero() {
		return fmt.Errorf("journal: %w: period required", shared.ErrInvalidInput)
	}
	switch in.EntryType {
	case EntryAcquisition, EntryDepreciation, EntryDisposition, EntryAdjustment:
	default:
		return fmt.Errorf("journal: %w: unknown entry type %q", shared.ErrInvalidInput, in.EntryType)
	}
	if len(in.Lines) < 2 {
		return fmt.Errorf("journal: %w: entry requires at least two lines", shared.ErrInvalidInput)
	}
	var debit, credit decimal.Decimal
	for idx, line := range in.Lines {
		if line.AccountCode == "" {
			return fmt.Errorf("journal: %w: line %d missing account", shared.ErrInvalidInput, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("journal: %w: line %d negative amount", shared.ErrInvalidInput, idx)
		}
		if line.Debit.Sign() > 0 && line.Credit.Sign() > 0 {
			return fmt.Errorf("journal: %w: line %d cannot be both debit and credit", shared.ErrInvalidInput, idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Round(2).Equal(credit.Round(2)) {
		return fmt.Errorf("%w: debits %s credits %s", shared.ErrUnbalancedEntry, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// Total returns the entry total (the debit side).
func (in EntryInput) Total() decimal.Decimal {
	var debit decimal.Decimal
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
	}
	return debit
}
