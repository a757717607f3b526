package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// ErrTagExists indicates the company already tracks this tag number.
var ErrTagExists = errors.New("ledger: tag number already registered")

// ListFilter narrows asset listings.
type ListFilter struct {
	Status  Status
	Page    int
	PerPage int
}

// Repository encapsulates DB operations for assets.
type Repository interface {
	Create(ctx context.Context, a Asset) (Asset, error)
	Get(ctx context.Context, companyID, id int64) (Asset, error)
	GetByTag(ctx context.Context, companyID int64, tag string) (Asset, error)
	List(ctx context.Context, companyID int64, filter ListFilter) ([]Asset, shared.Pagination, error)
	ListActive(ctx context.Context, companyID int64) ([]Asset, error)
	UpdateDepreciation(ctx context.Context, id int64, currentValue, totalDepreciation decimal.Decimal) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const assetColumns = `id, company_id, tag_number, birth_date, freshen_date, purchase_price, salvage_value, method, status, current_value, total_depreciation, acquisition_type, created_at, updated_at`

func scanAsset(row pgx.Row) (Asset, error) {
	var (
		a                            Asset
		price, salvage, value, total string
	)
	err := row.Scan(&a.ID, &a.CompanyID, &a.TagNumber, &a.BirthDate, &a.FreshenDate, &price, &salvage, &a.Method, &a.Status, &value, &total, &a.AcquisitionType, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Asset{}, err
	}
	if a.PurchasePrice, err = decimal.NewFromString(price); err != nil {
		return Asset{}, fmt.Errorf("ledger: scan purchase price: %w", err)
	}
	if a.SalvageValue, err = decimal.NewFromString(salvage); err != nil {
		return Asset{}, fmt.Errorf("ledger: scan salvage value: %w", err)
	}
	if a.CurrentValue, err = decimal.NewFromString(value); err != nil {
		return Asset{}, fmt.Errorf("ledger: scan current value: %w", err)
	}
	if a.TotalDepreciation, err = decimal.NewFromString(total); err != nil {
		return Asset{}, fmt.Errorf("ledger: scan total depreciation: %w", err)
	}
	return a, nil
}

func (r *repository) Create(ctx context.Context, a Asset) (Asset, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO assets (company_id, tag_number, birth_date, freshen_date, purchase_price, salvage_value, method, status, current_value, total_depreciation, acquisition_type)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id, created_at, updated_at`,
		a.CompanyID, a.TagNumber, a.BirthDate, a.FreshenDate, a.PurchasePrice.String(), a.SalvageValue.String(), a.Method, a.Status, a.CurrentValue.String(), a.TotalDepreciation.String(), a.AcquisitionType)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return Asset{}, ErrTagExists
		}
		return Asset{}, fmt.Errorf("ledger: create asset: %w", err)
	}
	return a, nil
}

func (r *repository) Get(ctx context.Context, companyID, id int64) (Asset, error) {
	a, err := scanAsset(r.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, shared.ErrNotFound
		}
		return Asset{}, err
	}
	return a, nil
}

func (r *repository) GetByTag(ctx context.Context, companyID int64, tag string) (Asset, error) {
	a, err := scanAsset(r.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE company_id=$1 AND tag_number=$2`, companyID, tag))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, shared.ErrNotFound
		}
		return Asset{}, err
	}
	return a, nil
}

func (r *repository) List(ctx context.Context, companyID int64, filter ListFilter) ([]Asset, shared.Pagination, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM assets WHERE company_id=$1 AND ($2='' OR status=$2)`
	if err := r.db.QueryRow(ctx, countQuery, companyID, string(filter.Status)).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("ledger: count assets: %w", err)
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	rows, err := r.db.Query(ctx, `SELECT `+assetColumns+` FROM assets WHERE company_id=$1 AND ($2='' OR status=$2) ORDER BY tag_number ASC LIMIT $3 OFFSET $4`,
		companyID, string(filter.Status), page.PerPage, page.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("ledger: list assets: %w", err)
	}
	defer rows.Close()
	var assets []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		assets = append(assets, a)
	}
	return assets, page, rows.Err()
}

func (r *repository) ListActive(ctx context.Context, companyID int64) ([]Asset, error) {
	rows, err := r.db.Query(ctx, `SELECT `+assetColumns+` FROM assets WHERE company_id=$1 AND status=$2 ORDER BY id ASC`, companyID, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("ledger: list active assets: %w", err)
	}
	defer rows.Close()
	var assets []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *repository) UpdateDepreciation(ctx context.Context, id int64, currentValue, totalDepreciation decimal.Decimal) error {
	cmd, err := r.db.Exec(ctx, `UPDATE assets SET current_value=$2, total_depreciation=$3, updated_at=NOW() WHERE id=$1 AND status=$4`,
		id, currentValue.String(), totalDepreciation.String(), StatusActive)
	if err != nil {
		return fmt.Errorf("ledger: update depreciation: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
