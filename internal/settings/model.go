package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// AccountRole names a logical slot in the chart of accounts. Composition code
// always goes through a role; account codes are never hard-coded.
type AccountRole string

const (
	RoleCash                AccountRole = "cash"
	RoleLivestockAsset      AccountRole = "livestock_asset"
	RoleAccumDepreciation   AccountRole = "accumulated_depreciation"
	RoleDepreciationExpense AccountRole = "depreciation_expense"
	RoleGainOnSale          AccountRole = "gain_on_sale"
	RoleLossOnSale          AccountRole = "loss_on_sale"
	RoleRaisedTransfer      AccountRole = "raised_transfer"
)

// ErrAccountUnmapped indicates the chart of accounts has no entry for a role.
var ErrAccountUnmapped = errors.New("settings: account role not mapped")

// Account is one mapped ledger account.
type Account struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ChartOfAccounts maps roles to company account codes/names.
type ChartOfAccounts map[AccountRole]Account

// Resolve returns the account for a role or ErrAccountUnmapped.
func (c ChartOfAccounts) Resolve(role AccountRole) (Account, error) {
	acct, ok := c[role]
	if !ok || acct.Code == "" {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountUnmapped, role)
	}
	return acct, nil
}

// Settings holds the per-company configuration with defined defaults. There
// is exactly one persistence path for these values.
type Settings struct {
	CompanyID         int64
	DepreciationYears int
	SalvagePercent    decimal.Decimal
	Rounding          shared.Rounding
	PartialMonths     bool
	Accounts          ChartOfAccounts
	UpdatedAt         time.Time
}

// UsefulLifeMonths derives the default useful life from depreciation years.
func (s Settings) UsefulLifeMonths() int {
	years := s.DepreciationYears
	if years <= 0 {
		years = DefaultDepreciationYears
	}
	return years * 12
}

const DefaultDepreciationYears = 5

// Defaults returns the settings applied when a company has no stored row.
func Defaults(companyID int64) Settings {
	return Settings{
		CompanyID:         companyID,
		DepreciationYears: DefaultDepreciationYears,
		SalvagePercent:    decimal.RequireFromString("0.10"),
		Rounding:          shared.RoundCents,
		PartialMonths:     false,
		Accounts: ChartOfAccounts{
			RoleCash:                {Code: "1000", Name: "Cash"},
			RoleLivestockAsset:      {Code: "1500", Name: "Livestock"},
			RoleAccumDepreciation:   {Code: "1510", Name: "Accumulated Depreciation - Livestock"},
			RoleDepreciationExpense: {Code: "6100", Name: "Depreciation Expense"},
			RoleGainOnSale:          {Code: "8100", Name: "Gain on Sale of Livestock"},
			RoleLossOnSale:          {Code: "8200", Name: "Loss on Sale of Livestock"},
			RoleRaisedTransfer:      {Code: "3900", Name: "Raised Livestock Transfers"},
		},
	}
}
