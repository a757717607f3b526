package adjustments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// Repository persists balance adjustments.
type Repository interface {
	Create(ctx context.Context, b BalanceAdjustment) (BalanceAdjustment, error)
	ListPending(ctx context.Context, companyID int64) ([]BalanceAdjustment, error)
	Get(ctx context.Context, companyID, id int64) (BalanceAdjustment, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, b BalanceAdjustment) (BalanceAdjustment, error) {
	if err := b.Validate(); err != nil {
		return BalanceAdjustment{}, err
	}
	row := r.db.QueryRow(ctx, `INSERT INTO balance_adjustments (company_id, prior_month, prior_year, adjustment_type, amount, description, applied)
VALUES ($1,$2,$3,$4,$5,$6,FALSE) RETURNING id, created_at`,
		b.CompanyID, int(b.PriorPeriod.Month), b.PriorPeriod.Year, b.Type, b.Amount.String(), b.Description)
	if err := row.Scan(&b.ID, &b.CreatedAt); err != nil {
		return BalanceAdjustment{}, fmt.Errorf("adjustments: create: %w", err)
	}
	return b, nil
}

func (r *repository) ListPending(ctx context.Context, companyID int64) ([]BalanceAdjustment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, company_id, prior_month, prior_year, adjustment_type, amount, description, applied, applied_entry_id, created_at
FROM balance_adjustments WHERE company_id=$1 AND applied=FALSE ORDER BY id ASC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("adjustments: list pending: %w", err)
	}
	defer rows.Close()
	var out []BalanceAdjustment
	for rows.Next() {
		b, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, companyID, id int64) (BalanceAdjustment, error) {
	b, err := scanAdjustment(r.db.QueryRow(ctx, `SELECT id, company_id, prior_month, prior_year, adjustment_type, amount, description, applied, applied_entry_id, created_at
FROM balance_adjustments WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BalanceAdjustment{}, shared.ErrNotFound
		}
		return BalanceAdjustment{}, err
	}
	return b, nil
}

func scanAdjustment(row pgx.Row) (BalanceAdjustment, error) {
	var (
		b      BalanceAdjustment
		month  int
		amount string
	)
	err := row.Scan(&b.ID, &b.CompanyID, &month, &b.PriorPeriod.Year, &b.Type, &amount, &b.Description, &b.Applied, &b.AppliedEntryID, &b.CreatedAt)
	if err != nil {
		return BalanceAdjustment{}, err
	}
	b.PriorPeriod.Month = time.Month(month)
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return BalanceAdjustment{}, fmt.Errorf("adjustments: scan amount: %w", err)
	}
	return b, nil
}
