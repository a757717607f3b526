package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// Repository loads and stores company settings.
type Repository interface {
	Get(ctx context.Context, companyID int64) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get returns stored settings, falling back to Defaults when no row exists.
func (r *repository) Get(ctx context.Context, companyID int64) (Settings, error) {
	var (
		s            = Defaults(companyID)
		salvage      string
		accountsJSON []byte
	)
	err := r.db.QueryRow(ctx, `SELECT depreciation_years, salvage_percent, rounding_mode, partial_months, accounts, updated_at
FROM company_settings WHERE company_id=$1`, companyID).
		Scan(&s.DepreciationYears, &salvage, &s.Rounding, &s.PartialMonths, &accountsJSON, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Defaults(companyID), nil
		}
		return Settings{}, fmt.Errorf("settings: get company %d: %w", companyID, err)
	}
	s.SalvagePercent, err = decimal.NewFromString(salvage)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: salvage percent for company %d: %w", companyID, err)
	}
	if len(accountsJSON) > 0 {
		if err := json.Unmarshal(accountsJSON, &s.Accounts); err != nil {
			return Settings{}, fmt.Errorf("settings: decode accounts for company %d: %w", companyID, err)
		}
	}
	if s.Rounding != shared.RoundWhole {
		s.Rounding = shared.RoundCents
	}
	return s, nil
}

// Save upserts the settings row.
func (r *repository) Save(ctx context.Context, s Settings) error {
	if s.CompanyID == 0 {
		return fmt.Errorf("settings: %w: company id required", shared.ErrInvalidInput)
	}
	accountsJSON, err := json.Marshal(s.Accounts)
	if err != nil {
		return fmt.Errorf("settings: encode accounts: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO company_settings (company_id, depreciation_years, salvage_percent, rounding_mode, partial_months, accounts, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (company_id) DO UPDATE SET depreciation_years=EXCLUDED.depreciation_years, salvage_percent=EXCLUDED.salvage_percent,
rounding_mode=EXCLUDED.rounding_mode, partial_months=EXCLUDED.partial_months, accounts=EXCLUDED.accounts, updated_at=NOW()`,
		s.CompanyID, s.DepreciationYears, s.SalvagePercent.String(), string(s.Rounding), s.PartialMonths, accountsJSON)
	if err != nil {
		return fmt.Errorf("settings: save company %d: %w", s.CompanyID, err)
	}
	return nil
}
