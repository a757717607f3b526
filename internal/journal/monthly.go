package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/herdledger/herdledger/internal/adjustments"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/shared"
)

// AssetSource lists the assets eligible for a depreciation run.
type AssetSource interface {
	ListActive(ctx context.Context, companyID int64) ([]ledger.Asset, error)
}

// PendingAdjustments lists unapplied balance adjustments.
type PendingAdjustments interface {
	ListPending(ctx context.Context, companyID int64) ([]adjustments.BalanceAdjustment, error)
}

// MonthlyRunner posts the single depreciation entry for a company and month.
// The entry, the asset balance updates, and the adjustment markers commit in
// one transaction; a duplicate run hits the source-key constraint and leaves
// everything untouched. Assets whose month was already backfilled by a
// catch-up run are excluded so a retried run never charges them twice.
type MonthlyRunner struct {
	repo     Repository
	assets   AssetSource
	pending  PendingAdjustments
	settings SettingsSource
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

func NewMonthlyRunner(repo Repository, assets AssetSource, pending PendingAdjustments, settings SettingsSource, audit AuditPort, logger *slog.Logger) *MonthlyRunner {
	return &MonthlyRunner{repo: repo, assets: assets, pending: pending, settings: settings, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (r *MonthlyRunner) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// PostMonth composes and posts the depreciation entry for the period.
// Returns ErrNothingToCompose when no charge is due and no adjustments are
// pending, and ErrSourceConflict when the period was already posted.
func (r *MonthlyRunner) PostMonth(ctx context.Context, companyID int64, period shared.Period) (JournalEntry, error) {
	cfg, err := r.settings.Get(ctx, companyID)
	if err != nil {
		return JournalEntry{}, err
	}
	composer := NewComposer(cfg)

	active, err := r.assets.ListActive(ctx, companyID)
	if err != nil {
		return JournalEntry{}, err
	}
	// Catch-up backfills carry per-asset source keys, so the entry-level
	// constraint never sees the overlap. Skip any asset whose month is
	// already covered before composing.
	assets := make([]ledger.Asset, 0, len(active))
	for _, a := range active {
		if a.Status != ledger.StatusActive {
			continue
		}
		covered, err := r.repo.HasDepreciationLine(ctx, companyID, a.ID, period)
		if err != nil {
			return JournalEntry{}, err
		}
		if covered {
			continue
		}
		assets = append(assets, a)
	}
	pending, err := r.pending.ListPending(ctx, companyID)
	if err != nil {
		return JournalEntry{}, err
	}

	input, err := composer.ComposeDepreciation(companyID, assets, period, pending)
	if err != nil {
		return JournalEntry{}, err
	}

	engine := composer.Engine()
	cutoff := period.Next().Start()
	var entry JournalEntry
	err = r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.InsertEntry(ctx, input, StatusPosted)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, entry.ID, input.Lines); err != nil {
			return err
		}
		adjIDs := make([]int64, 0, len(pending))
		for _, adj := range pending {
			adjIDs = append(adjIDs, adj.ID)
		}
		if err := tx.MarkAdjustmentsApplied(ctx, adjIDs, entry.ID); err != nil {
			return err
		}
		for _, a := range assets {
			accum := engine.AccumulatedAt(a, cutoff)
			if accum.Equal(a.TotalDepreciation) {
				continue
			}
			if err := tx.UpdateAssetDepreciation(ctx, a.ID, engine.BookValueAt(a, cutoff), accum); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}

	r.logger.Info("monthly depreciation posted",
		slog.Int64("company_id", companyID),
		slog.String("period", period.Code()),
		slog.String("total", entry.TotalAmount.StringFixed(2)),
		slog.Int("lines", len(input.Lines)))
	if r.audit != nil {
		if err := r.audit.Record(ctx, shared.AuditLog{
			Action:   "depreciation.post",
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"company_id":  companyID,
				"period":      period.Code(),
				"total":       entry.TotalAmount.StringFixed(2),
				"adjustments": len(pending),
			},
			At: r.now(),
		}); err != nil {
			r.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
	entry.Lines = entryLines(entry.ID, input.Lines)
	return entry, nil
}

func entryLines(entryID int64, lines []LineInput) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			JournalEntryID: entryID,
			AccountCode:    line.AccountCode,
			AccountName:    line.AccountName,
			Description:    line.Description,
			Debit:          line.Debit,
			Credit:         line.Credit,
			LineType:       line.Type(),
			AssetID:        line.AssetID,
		})
	}
	return out
}
