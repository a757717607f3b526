package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/platform/db"
	"github.com/herdledger/herdledger/internal/shared"
)

// ErrSourceConflict indicates an entry with the same source key was already
// posted; the write is a duplicate, not an error in the data.
var ErrSourceConflict = errors.New("journal: source already posted")

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntryWithLines(ctx context.Context, companyID, entryID int64) (JournalEntry, error)
	ListByPeriod(ctx context.Context, companyID int64, period shared.Period) ([]JournalEntry, error)
	HasDepreciationLine(ctx context.Context, companyID, assetID int64, period shared.Period) (bool, error)
	DepreciationTotal(ctx context.Context, companyID int64, period shared.Period) (decimal.Decimal, error)
}

// TxRepository exposes methods available within a posting transaction. An
// entry and its lines are always written in one transaction so readers never
// observe a partial line set. Asset and adjustment updates are available here
// because posting transactions must move them atomically with the entry.
type TxRepository interface {
	InsertEntry(ctx context.Context, in EntryInput, status EntryStatus) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) error
	ReplaceLines(ctx context.Context, entryID int64, lines []LineInput, total decimal.Decimal) error
	DeleteEntry(ctx context.Context, entryID int64) error
	MarkAdjustmentsApplied(ctx context.Context, ids []int64, entryID int64) error
	UpdateAssetDepreciation(ctx context.Context, assetID int64, currentValue, totalDepreciation decimal.Decimal) error
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

const entryColumns = `id, company_id, entry_date, month, year, entry_type, description, total_amount, status, source_id, source_key, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var (
		e     JournalEntry
		month int
		total string
	)
	err := row.Scan(&e.ID, &e.CompanyID, &e.EntryDate, &month, &e.Period.Year, &e.EntryType, &e.Description, &total, &e.Status, &e.SourceID, &e.SourceKey, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Period.Month = time.Month(month)
	if e.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return JournalEntry{}, fmt.Errorf("journal: scan total: %w", err)
	}
	return e, nil
}

func (r *repository) GetEntryWithLines(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrNotFound
		}
		return JournalEntry{}, err
	}
	entry.Lines, err = r.linesFor(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *repository) linesFor(ctx context.Context, entryID int64) ([]JournalLine, error) {
	rows, err := r.db.Query(ctx, `SELECT id, je_id, account_code, account_name, description, debit, credit, line_type, asset_id, created_at
FROM journal_lines WHERE je_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, fmt.Errorf("journal: load lines: %w", err)
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var (
			line          JournalLine
			debit, credit string
		)
		if err := rows.Scan(&line.ID, &line.JournalEntryID, &line.AccountCode, &line.AccountName, &line.Description, &debit, &credit, &line.LineType, &line.AssetID, &line.CreatedAt); err != nil {
			return nil, err
		}
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("journal: scan debit: %w", err)
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("journal: scan credit: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) ListByPeriod(ctx context.Context, companyID int64, period shared.Period) ([]JournalEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 AND month=$2 AND year=$3 ORDER BY id ASC`,
		companyID, int(period.Month), period.Year)
	if err != nil {
		return nil, fmt.Errorf("journal: list entries: %w", err)
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) HasDepreciationLine(ctx context.Context, companyID, assetID int64, period shared.Period) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE e.company_id=$1 AND e.entry_type=$2 AND e.month=$3 AND e.year=$4 AND l.asset_id=$5)`,
		companyID, EntryDepreciation, int(period.Month), period.Year, assetID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("journal: check depreciation line: %w", err)
	}
	return exists, nil
}

func (r *repository) DepreciationTotal(ctx context.Context, companyID int64, period shared.Period) (decimal.Decimal, error) {
	var total string
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(l.credit - l.debit), 0)::text
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE e.company_id=$1 AND e.entry_type=$2 AND e.month=$3 AND e.year=$4 AND l.asset_id IS NOT NULL`,
		companyID, EntryDepreciation, int(period.Month), period.Year).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("journal: depreciation total: %w", err)
	}
	return decimal.NewFromString(total)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertEntry(ctx context.Context, in EntryInput, status EntryStatus) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, entry_date, month, year, entry_type, description, total_amount, status, source_id, source_key)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		in.CompanyID, in.EntryDate, int(in.Period.Month), in.Period.Year, in.EntryType, in.Description, in.Total().StringFixed(2), status, in.SourceID, in.SourceKey)
	entry := JournalEntry{
		CompanyID:   in.CompanyID,
		EntryDate:   in.EntryDate,
		Period:      in.Period,
		EntryType:   in.EntryType,
		Description: in.Description,
		TotalAmount: in.Total(),
		Status:      status,
		SourceID:    in.SourceID,
		SourceKey:   in.SourceKey,
	}
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return JournalEntry{}, ErrSourceConflict
		}
		return JournalEntry{}, fmt.Errorf("journal: insert entry: %w", err)
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, account_code, account_name, description, debit, credit, line_type, asset_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			entryID, line.AccountCode, line.AccountName, line.Description, line.Debit.StringFixed(2), line.Credit.StringFixed(2), line.Type(), line.AssetID); err != nil {
			return fmt.Errorf("journal: insert line: %w", err)
		}
	}
	return nil
}

// ReplaceLines swaps an entry's lines as a single delete-then-insert and
// refreshes the total, all inside the surrounding transaction.
func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput, total decimal.Decimal) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE je_id=$1`, entryID); err != nil {
		return fmt.Errorf("journal: delete lines: %w", err)
	}
	if err := r.InsertLines(ctx, entryID, lines); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET total_amount=$2, updated_at=NOW() WHERE id=$1`, entryID, total.StringFixed(2))
	if err != nil {
		return fmt.Errorf("journal: update total: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE je_id=$1`, entryID); err != nil {
		return fmt.Errorf("journal: delete lines: %w", err)
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, entryID)
	if err != nil {
		return fmt.Errorf("journal: delete entry: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) MarkAdjustmentsApplied(ctx context.Context, ids []int64, entryID int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.tx.Exec(ctx, `UPDATE balance_adjustments SET applied=TRUE, applied_entry_id=$2 WHERE id = ANY($1)`, ids, entryID)
	if err != nil {
		return fmt.Errorf("journal: mark adjustments applied: %w", err)
	}
	return nil
}

// UpdateAssetDepreciation mirrors the ledger repository update but runs in
// the posting transaction so entry and asset move together.
func (r *txRepository) UpdateAssetDepreciation(ctx context.Context, assetID int64, currentValue, totalDepreciation decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE assets SET current_value=$2, total_depreciation=$3, updated_at=NOW() WHERE id=$1`,
		assetID, currentValue.StringFixed(2), totalDepreciation.StringFixed(2))
	if err != nil {
		return fmt.Errorf("journal: update asset depreciation: %w", err)
	}
	return nil
}
