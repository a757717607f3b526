package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

// SettingsSource loads per-company configuration.
type SettingsSource interface {
	Get(ctx context.Context, companyID int64) (settings.Settings, error)
}

// AuditPort records repair activity.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// EntryMutator is the journal surface repair needs. Satisfied by the journal
// service.
type EntryMutator interface {
	ReplaceEntryLines(ctx context.Context, entryID int64, lines []journal.LineInput) error
	DeleteEntry(ctx context.Context, entryID int64) error
}

// Service detects and repairs malformed journal entries. Repair takes an
// advisory lock per company and period so it never races a catch-up run or
// another repair over the same entries.
type Service struct {
	repo     Repository
	entries  EntryMutator
	settings SettingsSource
	locks    *shared.AdvisoryLock
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, entries EntryMutator, settings SettingsSource, locks *shared.AdvisoryLock, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, entries: entries, settings: settings, locks: locks, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Check enumerates every unbalanced or orphaned entry in the period with its
// computed variance. Read-only and safe to retry.
func (s *Service) Check(ctx context.Context, companyID int64, period shared.Period) (Report, error) {
	findings, err := s.repo.ListUnbalanced(ctx, companyID, period)
	if err != nil {
		return Report{}, err
	}
	return Report{Period: period, Findings: findings}, nil
}

// Repair fixes what it structurally can: entries with at most one line are
// deleted as unrepairable orphans, disposition entries are recomposed from
// the stored Asset and Disposition records and their lines replaced
// atomically. Anything else is reported, never fudged into balance.
func (s *Service) Repair(ctx context.Context, companyID int64, period shared.Period) (RepairOutcome, error) {
	outcome := RepairOutcome{Period: period}
	token := uuid.NewString()
	lockKey := shared.RepairLockKey(companyID, period)
	if err := s.locks.Acquire(ctx, lockKey, token); err != nil {
		return outcome, err
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Warn("release repair lock", slog.Any("error", err))
		}
	}()

	cfg, err := s.settings.Get(ctx, companyID)
	if err != nil {
		return outcome, err
	}
	composer := journal.NewComposer(cfg)

	findings, err := s.repo.ListUnbalanced(ctx, companyID, period)
	if err != nil {
		return outcome, err
	}
	outcome.Findings = len(findings)

	for _, f := range findings {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		switch {
		case f.Orphan():
			if err := s.entries.DeleteEntry(ctx, f.EntryID); err != nil {
				outcome.Skipped = append(outcome.Skipped, fmt.Sprintf("entry %d: delete orphan: %v", f.EntryID, err))
				continue
			}
			outcome.OrphansDeleted++
		case f.EntryType == journal.EntryDisposition:
			if err := s.repairDisposition(ctx, companyID, composer, f); err != nil {
				outcome.Skipped = append(outcome.Skipped, fmt.Sprintf("entry %d: %v", f.EntryID, err))
				continue
			}
			outcome.Repaired++
		default:
			outcome.Skipped = append(outcome.Skipped, fmt.Sprintf("entry %d: %s entry off by %s, no structural repair", f.EntryID, f.EntryType, f.Variance.StringFixed(2)))
		}
	}

	s.logger.Info("integrity repair finished",
		slog.Int64("company_id", companyID),
		slog.String("period", period.Code()),
		slog.Int("findings", outcome.Findings),
		slog.Int("repaired", outcome.Repaired),
		slog.Int("orphans_deleted", outcome.OrphansDeleted))
	if s.audit != nil && (outcome.Repaired > 0 || outcome.OrphansDeleted > 0) {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Action:   "integrity.repair",
			Entity:   "journal_period",
			EntityID: period.Code(),
			Meta: map[string]any{
				"company_id":      companyID,
				"findings":        outcome.Findings,
				"repaired":        outcome.Repaired,
				"orphans_deleted": outcome.OrphansDeleted,
			},
			At: s.now(),
		}); err != nil {
			s.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
	return outcome, nil
}

// repairDisposition rebuilds the entry from the current Asset and Disposition
// rows. Stored amounts are already zero rather than missing, so the composer
// always sees complete facts and its balance check guards the result.
func (s *Service) repairDisposition(ctx context.Context, companyID int64, composer journal.Composer, f Finding) error {
	d, asset, err := s.repo.DispositionForEntry(ctx, companyID, f.EntryID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("no disposition record linked")
		}
		return err
	}
	input, err := composer.ComposeDisposition(asset, journal.DispositionFacts{
		Date:       d.Date,
		SaleAmount: d.SaleAmount,
		Notes:      d.Notes,
	})
	if err != nil {
		return err
	}
	return s.entries.ReplaceEntryLines(ctx, f.EntryID, input.Lines)
}
