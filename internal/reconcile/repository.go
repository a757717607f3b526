package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/shared"
)

// Repository serves the read-only queries behind the reconciliation report.
// These are safe to retry; nothing here mutates.
type Repository interface {
	CountActiveBefore(ctx context.Context, companyID int64, cutoff time.Time) (int, error)
	AdditionsIn(ctx context.Context, companyID int64, period shared.Period) (int, error)
	DisposalsIn(ctx context.Context, companyID int64, period shared.Period) (int, error)
	JournalDepreciationTotal(ctx context.Context, companyID int64, period shared.Period) (decimal.Decimal, error)
	AssetsDepreciableIn(ctx context.Context, companyID int64, year int) ([]AssetWindow, error)
}

// AssetWindow is an asset plus its disposal date, if any. The window bounds
// which months the asset accrues depreciation.
type AssetWindow struct {
	Asset      ledger.Asset
	DisposedAt *time.Time
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// CountActiveBefore counts assets in service strictly before the cutoff:
// freshened earlier and not yet disposed.
func (r *repository) CountActiveBefore(ctx context.Context, companyID int64, cutoff time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM assets a
LEFT JOIN dispositions d ON d.asset_id = a.id
WHERE a.company_id=$1 AND a.freshen_date < $2 AND (d.id IS NULL OR d.disposition_date >= $2)`,
		companyID, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("reconcile: count active: %w", err)
	}
	return count, nil
}

func (r *repository) AdditionsIn(ctx context.Context, companyID int64, period shared.Period) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM assets WHERE company_id=$1 AND freshen_date >= $2 AND freshen_date < $3`,
		companyID, period.Start(), period.Next().Start()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("reconcile: count additions: %w", err)
	}
	return count, nil
}

func (r *repository) DisposalsIn(ctx context.Context, companyID int64, period shared.Period) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM dispositions WHERE company_id=$1 AND disposition_date >= $2 AND disposition_date < $3`,
		companyID, period.Start(), period.Next().Start()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("reconcile: count disposals: %w", err)
	}
	return count, nil
}

// JournalDepreciationTotal reads the posted per-asset depreciation credit
// lines for the month. The query is intentionally independent of the journal
// module's own reads so the report verifies, not echoes, its output.
func (r *repository) JournalDepreciationTotal(ctx context.Context, companyID int64, period shared.Period) (decimal.Decimal, error) {
	var total string
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.credit - l.debit), 0)::text
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE e.company_id=$1 AND e.entry_type=$2 AND e.month=$3 AND e.year=$4 AND l.asset_id IS NOT NULL`,
		companyID, journal.EntryDepreciation, int(period.Month), period.Year).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reconcile: journal total: %w", err)
	}
	return decimal.NewFromString(total)
}

// AssetsDepreciableIn returns every asset that could accrue depreciation in
// the year, with its disposal date when one exists.
func (r *repository) AssetsDepreciableIn(ctx context.Context, companyID int64, year int) ([]AssetWindow, error) {
	yearEnd := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows, err := r.db.Query(ctx, `SELECT a.id, a.company_id, a.tag_number, a.birth_date, a.freshen_date, a.purchase_price, a.salvage_value, a.method, a.status, a.current_value, a.total_depreciation, a.acquisition_type, a.created_at, a.updated_at, d.disposition_date
FROM assets a LEFT JOIN dispositions d ON d.asset_id = a.id
WHERE a.company_id=$1 AND a.freshen_date < $2 ORDER BY a.id ASC`, companyID, yearEnd)
	if err != nil {
		return nil, fmt.Errorf("reconcile: load assets: %w", err)
	}
	defer rows.Close()
	var out []AssetWindow
	for rows.Next() {
		w, err := scanAssetWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanAssetWindow(row pgx.Row) (AssetWindow, error) {
	var (
		w                            AssetWindow
		price, salvage, value, total string
	)
	a := &w.Asset
	err := row.Scan(&a.ID, &a.CompanyID, &a.TagNumber, &a.BirthDate, &a.FreshenDate, &price, &salvage, &a.Method, &a.Status, &value, &total, &a.AcquisitionType, &a.CreatedAt, &a.UpdatedAt, &w.DisposedAt)
	if err != nil {
		return AssetWindow{}, err
	}
	if a.PurchasePrice, err = decimal.NewFromString(price); err != nil {
		return AssetWindow{}, fmt.Errorf("reconcile: scan purchase price: %w", err)
	}
	if a.SalvageValue, err = decimal.NewFromString(salvage); err != nil {
		return AssetWindow{}, fmt.Errorf("reconcile: scan salvage value: %w", err)
	}
	if a.CurrentValue, err = decimal.NewFromString(value); err != nil {
		return AssetWindow{}, fmt.Errorf("reconcile: scan current value: %w", err)
	}
	if a.TotalDepreciation, err = decimal.NewFromString(total); err != nil {
		return AssetWindow{}, fmt.Errorf("reconcile: scan total depreciation: %w", err)
	}
	return w, nil
}
