package disposition

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/platform/db"
	"github.com/herdledger/herdledger/internal/shared"
)

// Repository encapsulates DB operations for dispositions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByAsset(ctx context.Context, companyID, assetID int64) (Disposition, error)
	ListInPeriod(ctx context.Context, companyID int64, period shared.Period) ([]Disposition, error)
}

// TxRepository bundles the writes a disposal performs atomically: the
// disposition record, the journal entry with its lines, and the asset's
// terminal state transition. The asset and journal SQL is duplicated from
// those modules because it must run on this transaction.
type TxRepository interface {
	GetAssetForUpdate(ctx context.Context, companyID, assetID int64) (ledger.Asset, error)
	InsertDisposition(ctx context.Context, d Disposition) (Disposition, error)
	InsertJournalEntry(ctx context.Context, in journal.EntryInput) (int64, error)
	TransitionAsset(ctx context.Context, assetID int64, status ledger.Status, currentValue, totalDepreciation decimal.Decimal) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const dispositionColumns = `id, company_id, asset_id, cause, disposition_date, sale_amount, final_book_value, gain_loss, notes, journal_entry_id, created_at`

func scanDisposition(row pgx.Row) (Disposition, error) {
	var (
		d                 Disposition
		sale, book, gloss string
	)
	err := row.Scan(&d.ID, &d.CompanyID, &d.AssetID, &d.Cause, &d.Date, &sale, &book, &gloss, &d.Notes, &d.JournalEntryID, &d.CreatedAt)
	if err != nil {
		return Disposition{}, err
	}
	if d.SaleAmount, err = decimal.NewFromString(sale); err != nil {
		return Disposition{}, fmt.Errorf("disposition: scan sale amount: %w", err)
	}
	if d.FinalBookValue, err = decimal.NewFromString(book); err != nil {
		return Disposition{}, fmt.Errorf("disposition: scan book value: %w", err)
	}
	if d.GainLoss, err = decimal.NewFromString(gloss); err != nil {
		return Disposition{}, fmt.Errorf("disposition: scan gain loss: %w", err)
	}
	return d, nil
}

func (r *repository) GetByAsset(ctx context.Context, companyID, assetID int64) (Disposition, error) {
	d, err := scanDisposition(r.db.QueryRow(ctx, `SELECT `+dispositionColumns+` FROM dispositions WHERE company_id=$1 AND asset_id=$2`, companyID, assetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Disposition{}, shared.ErrNotFound
		}
		return Disposition{}, err
	}
	return d, nil
}

func (r *repository) ListInPeriod(ctx context.Context, companyID int64, period shared.Period) ([]Disposition, error) {
	rows, err := r.db.Query(ctx, `SELECT `+dispositionColumns+` FROM dispositions
WHERE company_id=$1 AND disposition_date >= $2 AND disposition_date < $3 ORDER BY id ASC`,
		companyID, period.Start(), period.Next().Start())
	if err != nil {
		return nil, fmt.Errorf("disposition: list in period: %w", err)
	}
	defer rows.Close()
	var out []Disposition
	for rows.Next() {
		d, err := scanDisposition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetAssetForUpdate(ctx context.Context, companyID, assetID int64) (ledger.Asset, error) {
	var (
		a                            ledger.Asset
		price, salvage, value, total string
	)
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, tag_number, birth_date, freshen_date, purchase_price, salvage_value, method, status, current_value, total_depreciation, acquisition_type, created_at, updated_at
FROM assets WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, assetID).
		Scan(&a.ID, &a.CompanyID, &a.TagNumber, &a.BirthDate, &a.FreshenDate, &price, &salvage, &a.Method, &a.Status, &value, &total, &a.AcquisitionType, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Asset{}, shared.ErrNotFound
		}
		return ledger.Asset{}, fmt.Errorf("disposition: lock asset: %w", err)
	}
	if a.PurchasePrice, err = decimal.NewFromString(price); err != nil {
		return ledger.Asset{}, fmt.Errorf("disposition: scan purchase price: %w", err)
	}
	if a.SalvageValue, err = decimal.NewFromString(salvage); err != nil {
		return ledger.Asset{}, fmt.Errorf("disposition: scan salvage value: %w", err)
	}
	if a.CurrentValue, err = decimal.NewFromString(value); err != nil {
		return ledger.Asset{}, fmt.Errorf("disposition: scan current value: %w", err)
	}
	if a.TotalDepreciation, err = decimal.NewFromString(total); err != nil {
		return ledger.Asset{}, fmt.Errorf("disposition: scan total depreciation: %w", err)
	}
	return a, nil
}

func (r *txRepository) InsertDisposition(ctx context.Context, d Disposition) (Disposition, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO dispositions (company_id, asset_id, cause, disposition_date, sale_amount, final_book_value, gain_loss, notes, journal_entry_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		d.CompanyID, d.AssetID, d.Cause, d.Date, d.SaleAmount.StringFixed(2), d.FinalBookValue.StringFixed(2), d.GainLoss.StringFixed(2), d.Notes, d.JournalEntryID)
	if err := row.Scan(&d.ID, &d.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Disposition{}, shared.ErrInvalidState
		}
		return Disposition{}, fmt.Errorf("disposition: insert: %w", err)
	}
	return d, nil
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, in journal.EntryInput) (int64, error) {
	var entryID int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, entry_date, month, year, entry_type, description, total_amount, status, source_id, source_key)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		in.CompanyID, in.EntryDate, int(in.Period.Month), in.Period.Year, in.EntryType, in.Description, in.Total().StringFixed(2), journal.StatusPosted, in.SourceID, in.SourceKey).Scan(&entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, journal.ErrSourceConflict
		}
		return 0, fmt.Errorf("disposition: insert entry: %w", err)
	}
	for _, line := range in.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, account_code, account_name, description, debit, credit, line_type, asset_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			entryID, line.AccountCode, line.AccountName, line.Description, line.Debit.StringFixed(2), line.Credit.StringFixed(2), line.Type(), line.AssetID); err != nil {
			return 0, fmt.Errorf("disposition: insert line: %w", err)
		}
	}
	return entryID, nil
}

// TransitionAsset moves an active asset into its terminal state. The status
// guard in the WHERE clause enforces the one-way transition even under races.
func (r *txRepository) TransitionAsset(ctx context.Context, assetID int64, status ledger.Status, currentValue, totalDepreciation decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE assets SET status=$2, current_value=$3, total_depreciation=$4, updated_at=NOW() WHERE id=$1 AND status=$5`,
		assetID, status, currentValue.StringFixed(2), totalDepreciation.StringFixed(2), ledger.StatusActive)
	if err != nil {
		return fmt.Errorf("disposition: transition asset: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("disposition: %w: asset is not active", shared.ErrInvalidState)
	}
	return nil
}
