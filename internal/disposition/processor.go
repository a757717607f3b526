package disposition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

// SettingsSource loads per-company configuration.
type SettingsSource interface {
	Get(ctx context.Context, companyID int64) (settings.Settings, error)
}

// AuditPort records disposal activity.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Processor runs a disposal end to end: validate, compute book value and
// gain/loss, compose the journal entry, persist everything, and move the
// asset into its terminal state. All writes commit in one transaction.
type Processor struct {
	repo     Repository
	settings SettingsSource
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

func NewProcessor(repo Repository, settings SettingsSource, audit AuditPort, logger *slog.Logger) *Processor {
	return &Processor{repo: repo, settings: settings, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (p *Processor) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Process disposes one asset. The returned Result mirrors the outcome for
// callers that render it; the error carries the failure for control flow.
func (p *Processor) Process(ctx context.Context, in DisposeInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{AssetID: in.AssetID, Error: err.Error()}, err
	}
	cfg, err := p.settings.Get(ctx, in.CompanyID)
	if err != nil {
		return Result{AssetID: in.AssetID, Error: err.Error()}, err
	}
	composer := journal.NewComposer(cfg)
	engine := composer.Engine()
	target, _ := in.Cause.TargetStatus()

	var (
		disposed Disposition
		asset    ledger.Asset
	)
	err = p.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		asset, err = tx.GetAssetForUpdate(ctx, in.CompanyID, in.AssetID)
		if err != nil {
			return err
		}
		if !asset.CanTransitionTo(target) {
			return fmt.Errorf("disposition: %w: asset %s is %s", shared.ErrInvalidState, asset.TagNumber, asset.Status)
		}
		if in.Date.Before(asset.FreshenDate) {
			return fmt.Errorf("disposition: %w: disposition date precedes freshen date", shared.ErrInvalidInput)
		}

		accumulated := engine.AccumulatedAt(asset, in.Date)
		bookValue := engine.BookValueAt(asset, in.Date)
		entryInput, err := composer.ComposeDisposition(asset, journal.DispositionFacts{
			Date:       in.Date,
			SaleAmount: in.SaleAmount,
			Notes:      in.Notes,
		})
		if err != nil {
			return err
		}
		entryID, err := tx.InsertJournalEntry(ctx, entryInput)
		if err != nil {
			return err
		}
		disposed, err = tx.InsertDisposition(ctx, Disposition{
			CompanyID:      in.CompanyID,
			AssetID:        asset.ID,
			Cause:          in.Cause,
			Date:           in.Date,
			SaleAmount:     in.SaleAmount,
			FinalBookValue: bookValue,
			GainLoss:       in.SaleAmount.Sub(bookValue),
			Notes:          in.Notes,
			JournalEntryID: &entryID,
		})
		if err != nil {
			return err
		}
		return tx.TransitionAsset(ctx, asset.ID, target, bookValue, accumulated)
	})
	if err != nil {
		return Result{AssetID: in.AssetID, Error: err.Error()}, err
	}

	p.logger.Info("asset disposed",
		slog.Int64("company_id", in.CompanyID),
		slog.String("tag", asset.TagNumber),
		slog.String("cause", string(in.Cause)),
		slog.String("gain_loss", disposed.GainLoss.StringFixed(2)))
	if p.audit != nil {
		if err := p.audit.Record(ctx, shared.AuditLog{
			Action:   "disposition.process",
			Entity:   "disposition",
			EntityID: fmt.Sprintf("%d", disposed.ID),
			Meta: map[string]any{
				"company_id": in.CompanyID,
				"asset_id":   asset.ID,
				"cause":      string(in.Cause),
				"sale":       in.SaleAmount.StringFixed(2),
				"gain_loss":  disposed.GainLoss.StringFixed(2),
			},
			At: p.now(),
		}); err != nil {
			p.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}

	return Result{
		Success:        true,
		AssetID:        asset.ID,
		TagNumber:      asset.TagNumber,
		FinalBookValue: disposed.FinalBookValue,
		GainLoss:       disposed.GainLoss,
		JournalEntryID: *disposed.JournalEntryID,
	}, nil
}

// GetByAsset returns the disposition recorded for an asset.
func (p *Processor) GetByAsset(ctx context.Context, companyID, assetID int64) (Disposition, error) {
	return p.repo.GetByAsset(ctx, companyID, assetID)
}
