// Package catchup backfills missing acquisition and monthly depreciation
// entries for assets that were imported after their freshen date. Runs are
// idempotent: every backfilled entry carries a deterministic source key and
// each asset-month is checked before composing.
package catchup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

const (
	defaultBatchSize = 50
	maxBatches       = 1000
	maxReportErrors  = 20
)

// Progress reports a catch-up run to callers.
type Progress struct {
	CurrentBatch int      `json:"current_batch"`
	TotalBatches int      `json:"total_batches"`
	Processed    int      `json:"processed"`
	Created      int      `json:"created"`
	Errors       []string `json:"errors,omitempty"`
}

// Repository serves the candidate queries for catch-up runs.
type Repository interface {
	CountCandidates(ctx context.Context, companyID int64) (int, error)
	ListBatch(ctx context.Context, companyID int64, offset, limit int) ([]ledger.Asset, error)
	MissingAcquisitions(ctx context.Context, companyID int64) ([]ledger.Asset, error)
}

// EntryPoster posts composed entries. Satisfied by the journal service.
type EntryPoster interface {
	PostEntry(ctx context.Context, in journal.EntryInput) (journal.JournalEntry, error)
}

// LineChecker reports whether an asset already has a depreciation line for a
// month. Satisfied by the journal repository.
type LineChecker interface {
	HasDepreciationLine(ctx context.Context, companyID, assetID int64, period shared.Period) (bool, error)
}

// AssetUpdater advances asset balances after backfill. Satisfied by the
// ledger repository.
type AssetUpdater interface {
	UpdateDepreciation(ctx context.Context, id int64, currentValue, totalDepreciation decimal.Decimal) error
}

// SettingsSource loads per-company configuration.
type SettingsSource interface {
	Get(ctx context.Context, companyID int64) (settings.Settings, error)
}

// Processor runs historical backfill in bounded batches under an advisory
// lock. A batch that processes zero assets ends the run; maxBatches is a
// hard guard against a broken offset.
type Processor struct {
	repo      Repository
	poster    EntryPoster
	lines     LineChecker
	assets    AssetUpdater
	settings  SettingsSource
	locks     *shared.AdvisoryLock
	logger    *slog.Logger
	now       func() time.Time
	batchSize int
	pause     time.Duration
}

func NewProcessor(repo Repository, poster EntryPoster, lines LineChecker, assets AssetUpdater, settings SettingsSource, locks *shared.AdvisoryLock, logger *slog.Logger) *Processor {
	return &Processor{
		repo:      repo,
		poster:    poster,
		lines:     lines,
		assets:    assets,
		settings:  settings,
		locks:     locks,
		logger:    logger,
		now:       time.Now,
		batchSize: defaultBatchSize,
	}
}

// WithNow overrides the clock, used by tests.
func (p *Processor) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// WithBatchSize overrides the batch size, used by tests.
func (p *Processor) WithBatchSize(size int) {
	if size > 0 {
		p.batchSize = size
	}
}

// WithPause sets a cooperative pause between batches to ease store load.
func (p *Processor) WithPause(pause time.Duration) {
	p.pause = pause
}

// Run backfills a company's missing entries through the last completed month.
// Per-asset failures are collected and the run continues; only lock or
// candidate-query failures abort the whole run.
func (p *Processor) Run(ctx context.Context, companyID int64) (Progress, error) {
	progress := Progress{}
	token := uuid.NewString()
	lockKey := shared.CatchupLockKey(companyID)
	if err := p.locks.Acquire(ctx, lockKey, token); err != nil {
		return progress, err
	}
	defer func() {
		if err := p.locks.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			p.logger.Warn("release catchup lock", slog.Any("error", err))
		}
	}()

	cfg, err := p.settings.Get(ctx, companyID)
	if err != nil {
		return progress, err
	}
	composer := journal.NewComposer(cfg)
	lastPeriod := shared.PeriodOf(p.now()).Prev()

	if err := p.backfillAcquisitions(ctx, companyID, composer, &progress); err != nil {
		return progress, err
	}

	total, err := p.repo.CountCandidates(ctx, companyID)
	if err != nil {
		return progress, err
	}
	progress.TotalBatches = (total + p.batchSize - 1) / p.batchSize

	offset := 0
	for batch := 1; batch <= maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return progress, err
		}
		assets, err := p.repo.ListBatch(ctx, companyID, offset, p.batchSize)
		if err != nil {
			return progress, err
		}
		if len(assets) == 0 {
			break
		}
		progress.CurrentBatch = batch
		for _, a := range assets {
			progress.Processed++
			created, err := p.backfillAsset(ctx, composer, a, lastPeriod)
			progress.Created += created
			if err != nil {
				p.recordError(&progress, fmt.Sprintf("asset %s: %v", a.TagNumber, err))
			}
		}
		offset += len(assets)
		if p.pause > 0 {
			select {
			case <-ctx.Done():
				return progress, ctx.Err()
			case <-time.After(p.pause):
			}
		}
	}

	p.logger.Info("catchup run finished",
		slog.Int64("company_id", companyID),
		slog.Int("processed", progress.Processed),
		slog.Int("created", progress.Created),
		slog.Int("errors", len(progress.Errors)))
	return progress, nil
}

// backfillAcquisitions posts acquisition entries for assets that never got
// one. Source-key conflicts mean the entry already exists and are skipped.
func (p *Processor) backfillAcquisitions(ctx context.Context, companyID int64, composer journal.Composer, progress *Progress) error {
	assets, err := p.repo.MissingAcquisitions(ctx, companyID)
	if err != nil {
		return err
	}
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return err
		}
		input, err := composer.ComposeAcquisition(a)
		if err != nil {
			p.recordError(progress, fmt.Sprintf("acquisition %s: %v", a.TagNumber, err))
			continue
		}
		if _, err := p.poster.PostEntry(ctx, input); err != nil {
			if errors.Is(err, journal.ErrSourceConflict) {
				continue
			}
			p.recordError(progress, fmt.Sprintf("acquisition %s: %v", a.TagNumber, err))
			continue
		}
		progress.Created++
	}
	return nil
}

// backfillAsset posts one entry per missing month from the freshen month
// through lastPeriod, then advances the asset's stored balances.
func (p *Processor) backfillAsset(ctx context.Context, composer journal.Composer, a ledger.Asset, lastPeriod shared.Period) (int, error) {
	engine := composer.Engine()
	created := 0
	for period := shared.PeriodOf(a.FreshenDate); !lastPeriod.Before(period); period = period.Next() {
		if engine.ChargeForPeriod(a, period).Sign() <= 0 {
			continue
		}
		exists, err := p.lines.HasDepreciationLine(ctx, a.CompanyID, a.ID, period)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		input, err := composer.ComposeCatchup(a, period)
		if err != nil {
			if errors.Is(err, journal.ErrNothingToCompose) {
				continue
			}
			return created, err
		}
		if _, err := p.poster.PostEntry(ctx, input); err != nil {
			if errors.Is(err, journal.ErrSourceConflict) {
				continue
			}
			return created, err
		}
		created++
	}
	if created > 0 {
		cutoff := lastPeriod.Next().Start()
		if err := p.assets.UpdateDepreciation(ctx, a.ID, engine.BookValueAt(a, cutoff), engine.AccumulatedAt(a, cutoff)); err != nil {
			return created, err
		}
	}
	return created, nil
}

func (p *Processor) recordError(progress *Progress, msg string) {
	if len(progress.Errors) < maxReportErrors {
		progress.Errors = append(progress.Errors, msg)
	}
}
