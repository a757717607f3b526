package adjustments

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// Type classifies a prior-period balance adjustment.
type Type string

const (
	TypeDepreciationCorrection Type = "DEPRECIATION_CORRECTION"
	TypeDispositionCorrection  Type = "DISPOSITION_CORRECTION"
	TypeManual                 Type = "MANUAL"
)

// BalanceAdjustment corrects a prior period. A positive amount increases
// accumulated depreciation; a negative amount reduces it. Pending adjustments
// are folded into the next depreciation entry as matched line pairs and then
// marked applied.
type BalanceAdjustment struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	PriorPeriod    shared.Period   `json:"prior_period"`
	Type           Type            `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	Applied        bool            `json:"applied"`
	AppliedEntryID *int64          `json:"applied_entry_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Validate checks the adjustment before it is recorded.
func (b BalanceAdjustment) Validate() error {
	if b.CompanyID == 0 {
		return fmt.Errorf("adjustments: %w: company id required", shared.ErrInvalidInput)
	}
	if b.Amount.IsZero() {
		return fmt.Errorf("adjustments: %w: amount cannot be zero", shared.ErrInvalidInput)
	}
	if b.PriorPeriod.IsZero() {
		return fmt.Errorf("adjustments: %w: prior period required", shared.ErrInvalidInput)
	}
	switch b.Type {
	case TypeDepreciationCorrection, TypeDispositionCorrection, TypeManual:
	default:
		return fmt.Errorf("adjustments: %w: unknown adjustment type %q", shared.ErrInvalidInput, b.Type)
	}
	return nil
}
