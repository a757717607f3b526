package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/adjustments"
	"github.com/herdledger/herdledger/internal/depreciation"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

// ErrNothingToCompose indicates no depreciation is due for the period and no
// adjustments are pending.
var ErrNothingToCompose = errors.New("journal: nothing to compose for period")

// Composer builds balanced journal entries for asset events. Account codes
// come from the company chart of accounts; nothing is hard-coded. Every
// compose method validates its output before returning, so an unbalanced
// entry fails at composition time instead of reaching the store.
type Composer struct {
	accounts settings.ChartOfAccounts
	engine   depreciation.Engine
	rounding shared.Rounding
}

// NewComposer derives a composer from company settings.
func NewComposer(cfg settings.Settings) Composer {
	return Composer{
		accounts: cfg.Accounts,
		engine:   depreciation.NewEngine(cfg),
		rounding: cfg.Rounding,
	}
}

// Engine exposes the underlying depreciation engine so orchestrators reuse
// the same month convention.
func (c Composer) Engine() depreciation.Engine {
	return c.engine
}

// ComposeAcquisition debits the asset account for the purchase price and
// credits Cash for purchased animals or the raised-transfer account for
// raised ones.
func (c Composer) ComposeAcquisition(a ledger.Asset) (EntryInput, error) {
	if a.PurchasePrice.Sign() <= 0 {
		return EntryInput{}, fmt.Errorf("journal: %w: acquisition requires a positive purchase price", shared.ErrInvalidInput)
	}
	assetAcct, err := c.accounts.Resolve(settings.RoleLivestockAsset)
	if err != nil {
		return EntryInput{}, err
	}
	creditRole := settings.RoleCash
	if a.AcquisitionType == ledger.AcquisitionRaised {
		creditRole = settings.RoleRaisedTransfer
	}
	creditAcct, err := c.accounts.Resolve(creditRole)
	if err != nil {
		return EntryInput{}, err
	}
	assetID := a.ID
	input := EntryInput{
		CompanyID:   a.CompanyID,
		EntryDate:   a.FreshenDate,
		Period:      shared.PeriodOf(a.FreshenDate),
		EntryType:   EntryAcquisition,
		Description: fmt.Sprintf("Acquisition of %s", a.TagNumber),
		SourceID:    uuid.New(),
		SourceKey:   AcquisitionSourceKey(a.ID),
		Lines: []LineInput{
			{AccountCode: assetAcct.Code, AccountName: assetAcct.Name, Description: a.TagNumber, Debit: a.PurchasePrice, AssetID: &assetID},
			{AccountCode: creditAcct.Code, AccountName: creditAcct.Name, Description: a.TagNumber, Credit: a.PurchasePrice, AssetID: &assetID},
		},
	}
	if err := input.Validate(); err != nil {
		return EntryInput{}, err
	}
	return input, nil
}

// ComposeDepreciation debits Depreciation Expense for the period's total
// charge and credits Accumulated Depreciation per asset. Each pending
// BalanceAdjustment folds in as a matched pair of lines so the entry stays
// balanced after inclusion.
func (c Composer) ComposeDepreciation(companyID int64, assets []ledger.Asset, period shared.Period, pending []adjustments.BalanceAdjustment) (EntryInput, error) {
	expenseAcct, err := c.accounts.Resolve(settings.RoleDepreciationExpense)
	if err != nil {
		return EntryInput{}, err
	}
	accumAcct, err := c.accounts.Resolve(settings.RoleAccumDepreciation)
	if err != nil {
		return EntryInput{}, err
	}

	var (
		lines []LineInput
		total decimal.Decimal
	)
	for _, a := range assets {
		if a.Status != ledger.StatusActive {
			continue
		}
		charge := c.engine.ChargeForPeriod(a, period)
		if charge.Sign() <= 0 {
			continue
		}
		assetID := a.ID
		lines = append(lines, LineInput{
			AccountCode: accumAcct.Code,
			AccountName: accumAcct.Name,
			Description: fmt.Sprintf("%s %s", a.TagNumber, period.Code()),
			Credit:      charge,
			AssetID:     &assetID,
		})
		total = total.Add(charge)
	}
	if total.Sign() > 0 {
		lines = append([]LineInput{{
			AccountCode: expenseAcct.Code,
			AccountName: expenseAcct.Name,
			Description: fmt.Sprintf("Depreciation %s", period.Code()),
			Debit:       total,
		}}, lines...)
	}

	for _, adj := range pending {
		amount := shared.RoundAmount(adj.Amount, c.rounding)
		if amount.IsZero() {
			continue
		}
		desc := adj.Description
		if desc == "" {
			desc = fmt.Sprintf("Adjustment %s", adj.PriorPeriod.Code())
		}
		if amount.Sign() > 0 {
			lines = append(lines,
				LineInput{AccountCode: expenseAcct.Code, AccountName: expenseAcct.Name, Description: desc, Debit: amount},
				LineInput{AccountCode: accumAcct.Code, AccountName: accumAcct.Name, Description: desc, Credit: amount},
			)
		} else {
			lines = append(lines,
				LineInput{AccountCode: accumAcct.Code, AccountName: accumAcct.Name, Description: desc, Debit: amount.Neg()},
				LineInput{AccountCode: expenseAcct.Code, AccountName: expenseAcct.Name, Description: desc, Credit: amount.Neg()},
			)
		}
	}
	if len(lines) == 0 {
		return EntryInput{}, ErrNothingToCompose
	}

	input := EntryInput{
		CompanyID:   companyID,
		EntryDate:   period.End().Truncate(24 * time.Hour),
		Period:      period,
		EntryType:   EntryDepreciation,
		Description: fmt.Sprintf("Monthly depreciation %s", period.Code()),
		SourceID:    uuid.New(),
		SourceKey:   DepreciationSourceKey(companyID, period),
		Lines:       lines,
	}
	if err := input.Validate(); err != nil {
		return EntryInput{}, err
	}
	return input, nil
}

// ComposeCatchup builds a single-asset depreciation entry for one backfilled
// month. Returns ErrNothingToCompose when the asset accrues no charge in the
// period.
func (c Composer) ComposeCatchup(a ledger.Asset, period shared.Period) (EntryInput, error) {
	charge := c.engine.ChargeForPeriod(a, period)
	if charge.Sign() <= 0 {
		return EntryInput{}, ErrNothingToCompose
	}
	expenseAcct, err := c.accounts.Resolve(settings.RoleDepreciationExpense)
	if err != nil {
		return EntryInput{}, err
	}
	accumAcct, err := c.accounts.Resolve(settings.RoleAccumDepreciation)
	if err != nil {
		return EntryInput{}, err
	}
	assetID := a.ID
	desc := fmt.Sprintf("Catch-up depreciation %s %s", a.TagNumber, period.Code())
	input := EntryInput{
		CompanyID:   a.CompanyID,
		EntryDate:   period.End().Truncate(24 * time.Hour),
		Period:      period,
		EntryType:   EntryDepreciation,
		Description: desc,
		SourceID:    uuid.New(),
		SourceKey:   CatchupSourceKey(a.ID, period),
		Lines: []LineInput{
			{AccountCode: expenseAcct.Code, AccountName: expenseAcct.Name, Description: desc, Debit: charge},
			{AccountCode: accumAcct.Code, AccountName: accumAcct.Name, Description: desc, Credit: charge, AssetID: &assetID},
		},
	}
	if err := input.Validate(); err != nil {
		return EntryInput{}, err
	}
	return input, nil
}

// DispositionFacts carries the disposal inputs the composer needs. Missing
// amounts are zero, never omitted, so repair can rebuild an entry from
// incomplete stored data.
type DispositionFacts struct {
	Date       time.Time
	SaleAmount decimal.Decimal
	Notes      string
}

// ComposeDisposition closes out a disposed asset: debit Cash for proceeds,
// debit Accumulated Depreciation for depreciation taken, credit the asset
// account for the purchase price, and balance with a gain or loss line sized
// to exactly close the difference.
func (c Composer) ComposeDisposition(a ledger.Asset, facts DispositionFacts) (EntryInput, error) {
	if facts.Date.IsZero() {
		return EntryInput{}, fmt.Errorf("journal: %w: disposition date required", shared.ErrInvalidInput)
	}
	if facts.SaleAmount.IsNegative() {
		return EntryInput{}, fmt.Errorf("journal: %w: sale amount cannot be negative", shared.ErrInvalidInput)
	}
	assetAcct, err := c.accounts.Resolve(settings.RoleLivestockAsset)
	if err != nil {
		return EntryInput{}, err
	}
	accumAcct, err := c.accounts.Resolve(settings.RoleAccumDepreciation)
	if err != nil {
		return EntryInput{}, err
	}
	cashAcct, err := c.accounts.Resolve(settings.RoleCash)
	if err != nil {
		return EntryInput{}, err
	}

	accum := c.engine.AccumulatedAt(a, facts.Date)
	book := a.PurchasePrice.Sub(accum)
	gainLoss := facts.SaleAmount.Sub(book)
	assetID := a.ID

	var lines []LineInput
	if facts.SaleAmount.Sign() > 0 {
		lines = append(lines, LineInput{AccountCode: cashAcct.Code, AccountName: cashAcct.Name, Description: a.TagNumber, Debit: facts.SaleAmount, AssetID: &assetID})
	}
	if accum.Sign() > 0 {
		lines = append(lines, LineInput{AccountCode: accumAcct.Code, AccountName: accumAcct.Name, Description: a.TagNumber, Debit: accum, AssetID: &assetID})
	}
	lines = append(lines, LineInput{AccountCode: assetAcct.Code, AccountName: assetAcct.Name, Description: a.TagNumber, Credit: a.PurchasePrice, AssetID: &assetID})
	switch {
	case gainLoss.Sign() > 0:
		gainAcct, err := c.accounts.Resolve(settings.RoleGainOnSale)
		if err != nil {
			return EntryInput{}, err
		}
		lines = append(lines, LineInput{AccountCode: gainAcct.Code, AccountName: gainAcct.Name, Description: a.TagNumber, Credit: gainLoss, AssetID: &assetID})
	case gainLoss.Sign() < 0:
		lossAcct, err := c.accounts.Resolve(settings.RoleLossOnSale)
		if err != nil {
			return EntryInput{}, err
		}
		lines = append(lines, LineInput{AccountCode: lossAcct.Code, AccountName: lossAcct.Name, Description: a.TagNumber, Debit: gainLoss.Neg(), AssetID: &assetID})
	}

	input := EntryInput{
		CompanyID:   a.CompanyID,
		EntryDate:   facts.Date,
		Period:      shared.PeriodOf(facts.Date),
		EntryType:   EntryDisposition,
		Description: fmt.Sprintf("Disposition of %s", a.TagNumber),
		SourceID:    uuid.New(),
		SourceKey:   DispositionSourceKey(a.ID),
		Lines:       lines,
	}
	if err := input.Validate(); err != nil {
		return EntryInput{}, err
	}
	return input, nil
}

// AcquisitionSourceKey identifies the acquisition entry for an asset.
func AcquisitionSourceKey(assetID int64) string {
	return fmt.Sprintf("ACQ|%d", assetID)
}

// DepreciationSourceKey identifies the monthly depreciation entry for a
// company and period.
func DepreciationSourceKey(companyID int64, period shared.Period) string {
	return fmt.Sprintf("DEPR|%d|%s", companyID, period.Code())
}

// CatchupSourceKey identifies a backfilled per-asset depreciation entry.
func CatchupSourceKey(assetID int64, period shared.Period) string {
	return fmt.Sprintf("DEPR|%d|%s|catchup", assetID, period.Code())
}

// DispositionSourceKey identifies the disposition entry for an asset.
func DispositionSourceKey(assetID int64) string {
	return fmt.Sprintf("DISP|%d", assetID)
}
