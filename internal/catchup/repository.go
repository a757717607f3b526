package catchup

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/ledger"
)

type repository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db, now: time.Now}
}

// CountCandidates counts active assets whose depreciation started in the
// past. They may or may not be missing entries; the per-month check decides.
func (r *repository) CountCandidates(ctx context.Context, companyID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM assets WHERE company_id=$1 AND status=$2 AND freshen_date < $3`,
		companyID, ledger.StatusActive, r.now()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("catchup: count candidates: %w", err)
	}
	return count, nil
}

func (r *repository) ListBatch(ctx context.Context, companyID int64, offset, limit int) ([]ledger.Asset, error) {
	rows, err := r.db.Query(ctx, `SELECT id, company_id, tag_number, birth_date, freshen_date, purchase_price, salvage_value, method, status, current_value, total_depreciation, acquisition_type, created_at, updated_at
FROM assets WHERE company_id=$1 AND status=$2 AND freshen_date < $3 ORDER BY id ASC LIMIT $4 OFFSET $5`,
		companyID, ledger.StatusActive, r.now(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("catchup: list batch: %w", err)
	}
	defer rows.Close()
	return collectAssets(rows)
}

// MissingAcquisitions finds assets with no acquisition entry, matched by the
// deterministic source key the composer assigns.
func (r *repository) MissingAcquisitions(ctx context.Context, companyID int64) ([]ledger.Asset, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.company_id, a.tag_number, a.birth_date, a.freshen_date, a.purchase_price, a.salvage_value, a.method, a.status, a.current_value, a.total_depreciation, a.acquisition_type, a.created_at, a.updated_at
FROM assets a
LEFT JOIN journal_entries e ON e.company_id = a.company_id AND e.source_key = 'ACQ|' || a.id::text
WHERE a.company_id=$1 AND e.id IS NULL ORDER BY a.id ASC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("catchup: missing acquisitions: %w", err)
	}
	defer rows.Close()
	return collectAssets(rows)
}

func collectAssets(rows pgx.Rows) ([]ledger.Asset, error) {
	var out []ledger.Asset
	for rows.Next() {
		var (
			a                            ledger.Asset
			price, salvage, value, total string
		)
		err := rows.Scan(&a.ID, &a.CompanyID, &a.TagNumber, &a.BirthDate, &a.FreshenDate, &price, &salvage, &a.Method, &a.Status, &value, &total, &a.AcquisitionType, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if a.PurchasePrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("catchup: scan purchase price: %w", err)
		}
		if a.SalvageValue, err = decimal.NewFromString(salvage); err != nil {
			return nil, fmt.Errorf("catchup: scan salvage value: %w", err)
		}
		if a.CurrentValue, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("catchup: scan current value: %w", err)
		}
		if a.TotalDepreciation, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("catchup: scan total depreciation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
