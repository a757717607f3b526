package disposition

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/shared"
)

// Cause records why an asset left the herd.
type Cause string

const (
	CauseSale   Cause = "SALE"
	CauseDeath  Cause = "DEATH"
	CauseCulled Cause = "CULLED"
)

// TargetStatus maps a cause to the asset's terminal status.
func (c Cause) TargetStatus() (ledger.Status, bool) {
	switch c {
	case CauseSale:
		return ledger.StatusSold, true
	case CauseDeath:
		return ledger.StatusDeceased, true
	case CauseCulled:
		return ledger.StatusRetired, true
	}
	return "", false
}

// Disposition is the stored record of one asset disposal. AssetID and
// JournalEntryID are weak references.
type Disposition struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	AssetID        int64           `json:"asset_id"`
	Cause          Cause           `json:"cause"`
	Date           time.Time       `json:"date"`
	SaleAmount     decimal.Decimal `json:"sale_amount"`
	FinalBookValue decimal.Decimal `json:"final_book_value"`
	GainLoss       decimal.Decimal `json:"gain_loss"`
	Notes          string          `json:"notes,omitempty"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DisposeInput carries a disposal request.
type DisposeInput struct {
	CompanyID  int64
	AssetID    int64
	Cause      Cause
	Date       time.Time
	SaleAmount decimal.Decimal
	Notes      string
}

// Validate checks the request shape. State checks against the asset happen
// inside the processing transaction.
func (in DisposeInput) Validate() error {
	if in.CompanyID == 0 {
		return fmt.Errorf("disposition: %w: company id required", shared.ErrInvalidInput)
	}
	if in.AssetID == 0 {
		return fmt.Errorf("disposition: %w: asset id required", shared.ErrInvalidInput)
	}
	if _, ok := in.Cause.TargetStatus(); !ok {
		return fmt.Errorf("disposition: %w: unknown cause %q", shared.ErrInvalidInput, in.Cause)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("disposition: %w: disposition date required", shared.ErrInvalidInput)
	}
	if in.SaleAmount.IsNegative() {
		return fmt.Errorf("disposition: %w: sale amount cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

// Result reports the outcome of one disposal to callers.
type Result struct {
	Success        bool            `json:"success"`
	AssetID        int64           `json:"asset_id"`
	TagNumber      string          `json:"tag_number"`
	FinalBookValue decimal.Decimal `json:"final_book_value"`
	GainLoss       decimal.Decimal `json:"gain_loss"`
	JournalEntryID int64           `json:"journal_entry_id"`
	Error          string          `json:"error,omitempty"`
}
