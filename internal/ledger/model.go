package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// Status enumerates asset lifecycle values. Transitions out of ACTIVE are
// one-way and terminal.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusSold     Status = "SOLD"
	StatusDeceased Status = "DECEASED"
	StatusRetired  Status = "RETIRED"
)

// AcquisitionType records how the asset entered the herd.
type AcquisitionType string

const (
	AcquisitionPurchased AcquisitionType = "PURCHASED"
	AcquisitionRaised    AcquisitionType = "RAISED"
)

// Method selects the depreciation schedule for an asset.
type Method string

const (
	MethodStraightLine     Method = "STRAIGHT_LINE"
	MethodDecliningBalance Method = "DECLINING_BALANCE"
	MethodSumOfYears       Method = "SUM_OF_YEARS"
)

// Asset is one depreciable animal. TagNumber is unique per company.
type Asset struct {
	ID                int64           `json:"id"`
	CompanyID         int64           `json:"company_id"`
	TagNumber         string          `json:"tag_number"`
	BirthDate         time.Time       `json:"birth_date,omitzero"`
	FreshenDate       time.Time       `json:"freshen_date"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	SalvageValue      decimal.Decimal `json:"salvage_value"`
	Method            Method          `json:"method"`
	Status            Status          `json:"status"`
	CurrentValue      decimal.Decimal `json:"current_value"`
	TotalDepreciation decimal.Decimal `json:"total_depreciation"`
	AcquisitionType   AcquisitionType `json:"acquisition_type"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// DepreciableBase is the total amount the asset can ever depreciate.
func (a Asset) DepreciableBase() decimal.Decimal {
	return a.PurchasePrice.Sub(a.SalvageValue)
}

// Validate enforces the asset invariants:
// salvage <= currentValue <= purchasePrice and totalDepreciation <= base.
func (a Asset) Validate() error {
	if a.CompanyID == 0 {
		return fmt.Errorf("ledger: %w: company id required", shared.ErrInvalidInput)
	}
	if a.TagNumber == "" {
		return fmt.Errorf("ledger: %w: tag number required", shared.ErrInvalidInput)
	}
	if a.FreshenDate.IsZero() {
		return fmt.Errorf("ledger: %w: freshen date required", shared.ErrInvalidInput)
	}
	if a.PurchasePrice.IsNegative() || a.PurchasePrice.IsZero() {
		return fmt.Errorf("ledger: %w: purchase price must be positive", shared.ErrInvalidInput)
	}
	if a.SalvageValue.IsNegative() {
		return fmt.Errorf("ledger: %w: salvage value cannot be negative", shared.ErrInvalidInput)
	}
	if a.SalvageValue.GreaterThan(a.PurchasePrice) {
		return fmt.Errorf("ledger: %w: salvage value exceeds purchase price", shared.ErrInvalidInput)
	}
	if a.CurrentValue.LessThan(a.SalvageValue) || a.CurrentValue.GreaterThan(a.PurchasePrice) {
		return fmt.Errorf("ledger: %w: current value outside [salvage, purchase]", shared.ErrInvalidInput)
	}
	if a.TotalDepreciation.GreaterThan(a.DepreciableBase()) {
		return fmt.Errorf("ledger: %w: total depreciation exceeds depreciable base", shared.ErrInvalidInput)
	}
	return nil
}

// CanTransitionTo reports whether the status change is allowed. Only ACTIVE
// assets may move, and only into a terminal state.
func (a Asset) CanTransitionTo(target Status) bool {
	if a.Status != StatusActive {
		return false
	}
	switch target {
	case StatusSold, StatusDeceased, StatusRetired:
		return true
	}
	return false
}

// ValidMethod reports whether m names a supported schedule.
func ValidMethod(m Method) bool {
	switch m {
	case MethodStraightLine, MethodDecliningBalance, MethodSumOfYears:
		return true
	}
	return false
}
