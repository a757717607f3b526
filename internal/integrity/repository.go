package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/disposition"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/shared"
)

// Repository serves the detection queries. Repairs go through the journal
// repository's transactional line replacement.
type Repository interface {
	ListUnbalanced(ctx context.Context, companyID int64, period shared.Period) ([]Finding, error)
	DispositionForEntry(ctx context.Context, companyID, entryID int64) (disposition.Disposition, ledger.Asset, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// ListUnbalanced groups each entry's lines and returns those whose debit and
// credit totals differ by more than a cent, plus entries with at most one
// line.
func (r *repository) ListUnbalanced(ctx context.Context, companyID int64, period shared.Period) ([]Finding, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.entry_type, COUNT(l.id), COALESCE(SUM(l.debit),0)::text, COALESCE(SUM(l.credit),0)::text
FROM journal_entries e
LEFT JOIN journal_lines l ON l.je_id = e.id
WHERE e.company_id=$1 AND e.month=$2 AND e.year=$3
GROUP BY e.id, e.entry_type
HAVING ABS(COALESCE(SUM(l.debit),0) - COALESCE(SUM(l.credit),0)) > 0.01 OR COUNT(l.id) <= 1
ORDER BY e.id ASC`, companyID, int(period.Month), period.Year)
	if err != nil {
		return nil, fmt.Errorf("integrity: list unbalanced: %w", err)
	}
	defer rows.Close()
	var findings []Finding
	for rows.Next() {
		var (
			f             Finding
			debits, creds string
		)
		if err := rows.Scan(&f.EntryID, &f.EntryType, &f.LineCount, &debits, &creds); err != nil {
			return nil, err
		}
		if f.Debits, err = decimal.NewFromString(debits); err != nil {
			return nil, fmt.Errorf("integrity: scan debits: %w", err)
		}
		if f.Credits, err = decimal.NewFromString(creds); err != nil {
			return nil, fmt.Errorf("integrity: scan credits: %w", err)
		}
		f.Variance = f.Debits.Sub(f.Credits)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// DispositionForEntry loads the disposition that produced an entry together
// with its asset, for recomposition.
func (r *repository) DispositionForEntry(ctx context.Context, companyID, entryID int64) (disposition.Disposition, ledger.Asset, error) {
	var (
		d                            disposition.Disposition
		a                            ledger.Asset
		sale, book, gloss            string
		price, salvage, value, total string
	)
	err := r.db.QueryRow(ctx, `SELECT d.id, d.company_id, d.asset_id, d.cause, d.disposition_date, d.sale_amount, d.final_book_value, d.gain_loss, d.notes, d.journal_entry_id, d.created_at,
a.id, a.company_id, a.tag_number, a.birth_date, a.freshen_date, a.purchase_price, a.salvage_value, a.method, a.status, a.current_value, a.total_depreciation, a.acquisition_type, a.created_at, a.updated_at
FROM dispositions d JOIN assets a ON a.id = d.asset_id
WHERE d.company_id=$1 AND d.journal_entry_id=$2`, companyID, entryID).Scan(
		&d.ID, &d.CompanyID, &d.AssetID, &d.Cause, &d.Date, &sale, &book, &gloss, &d.Notes, &d.JournalEntryID, &d.CreatedAt,
		&a.ID, &a.CompanyID, &a.TagNumber, &a.BirthDate, &a.FreshenDate, &price, &salvage, &a.Method, &a.Status, &value, &total, &a.AcquisitionType, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return disposition.Disposition{}, ledger.Asset{}, shared.ErrNotFound
		}
		return disposition.Disposition{}, ledger.Asset{}, fmt.Errorf("integrity: load disposition: %w", err)
	}
	if d.SaleAmount, err = decimal.NewFromString(sale); err != nil {
		return disposition.Disposition{}, ledger.Asset{}, fmt.Errorf("integrity: scan sale amount: %w", err)
	}
	if d.FinalBookValue, err = decimal.NewFromString(book); err != nil {
		return disposition.Disposition{}, ledger.Asset{}, fmt.Errorf("integrity: scan book value: %w", err)
	}
	if d.GainLoss, err = decimal.NewFromString(gloss); err != nil {
		return disposition.Disposition{}, ledger.Asset{}, fmt.Errorf("integrity: scan gain loss: %w", err)
	}
	if a.PurchasePrice, err = decimal.NewFromString(price); err != nil {
		return disposition.Disposition{}, ledger.Asset{}, fmt.Errorf("integrity: scan purchase price: %w", err)
	}
	if a.SalvageValue, err = decimal.NewFromString(salvage); err != nil {
		return disposition.Disposition{}, ledger.Asset{}, fmt.Errorf("integrity: scan salvage value: %w", err)
	}
	if a.CurrentValue, err = decimal.NewFromString(value); err != nil {
		return disposition.Disposition{}, ledger.Asset{}, fmt.Errorf("integrity: scan current value: %w", err)
	}
	if a.TotalDepreciation, err = decimal.NewFromString(total); err != nil {
		return disposition.Disposition{}, ledger.Asset{}, fmt.Errorf("integrity: scan total depreciation: %w", err)
	}
	return d, a, nil
}
