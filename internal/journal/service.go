package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

// AuditPort records posting activity.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SettingsSource loads per-company configuration.
type SettingsSource interface {
	Get(ctx context.Context, companyID int64) (settings.Settings, error)
}

// Service posts journal entries and serves reads.
type Service struct {
	repo     Repository
	settings SettingsSource
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, settings SettingsSource, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, settings: settings, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostEntry validates and writes an entry with its lines in one transaction.
// A duplicate source key returns ErrSourceConflict with no partial write.
func (s *Service) PostEntry(ctx context.Context, in EntryInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.InsertEntry(ctx, in, StatusPosted)
		if err != nil {
			return err
		}
		return tx.InsertLines(ctx, entry.ID, in.Lines)
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, "journal.post", entry)
	return entry, nil
}

// GetEntry loads an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	return s.repo.GetEntryWithLines(ctx, companyID, entryID)
}

// ListByPeriod returns the entries posted for one month.
func (s *Service) ListByPeriod(ctx context.Context, companyID int64, period shared.Period) ([]JournalEntry, error) {
	return s.repo.ListByPeriod(ctx, companyID, period)
}

// ReplaceEntryLines swaps an entry's lines as one transactional
// delete-then-insert. The replacement must balance; readers never observe a
// zero-line entry. Used by integrity repair.
func (s *Service) ReplaceEntryLines(ctx context.Context, entryID int64, lines []LineInput) error {
	if len(lines) < 2 {
		return fmt.Errorf("journal: %w: replacement requires at least two lines", shared.ErrInvalidInput)
	}
	var debit, credit decimal.Decimal
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !shared.WithinCent(debit, credit) {
		return fmt.Errorf("%w: debits %s credits %s", shared.ErrUnbalancedEntry, debit.StringFixed(2), credit.StringFixed(2))
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.ReplaceLines(ctx, entryID, lines, debit)
	})
}

// DeleteEntry removes an entry and its lines. Used by integrity repair to
// clear unrepairable orphans.
func (s *Service) DeleteEntry(ctx context.Context, entryID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteEntry(ctx, entryID)
	})
}

// PostManualAdjustment composes and posts a free-form balanced adjustment
// entry. Lines come from the caller; only the balance contract is enforced.
func (s *Service) PostManualAdjustment(ctx context.Context, in EntryInput) (JournalEntry, error) {
	in.EntryType = EntryAdjustment
	if in.EntryDate.IsZero() {
		in.EntryDate = s.now()
	}
	if in.Period.IsZero() {
		in.Period = shared.PeriodOf(in.EntryDate)
	}
	return s.PostEntry(ctx, in)
}

func (s *Service) recordAudit(ctx context.Context, action string, entry JournalEntry) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"company_id": entry.CompanyID,
			"entry_type": string(entry.EntryType),
			"period":     entry.Period.Code(),
			"total":      entry.TotalAmount.StringFixed(2),
			"source_key": entry.SourceKey,
		},
		At: s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// AcquisitionAdapter satisfies ledger.AcquisitionPoster so asset registration
// can post its entry without the ledger package importing journal types.
type AcquisitionAdapter struct {
	settings SettingsSource
	service  *Service
}

func NewAcquisitionAdapter(settings SettingsSource, service *Service) *AcquisitionAdapter {
	return &AcquisitionAdapter{settings: settings, service: service}
}

// PostAcquisition composes and posts the acquisition entry for a new asset.
// Reposting the same asset is treated as already done, not a failure.
func (a *AcquisitionAdapter) PostAcquisition(ctx context.Context, asset ledger.Asset) (int64, error) {
	cfg, err := a.settings.Get(ctx, asset.CompanyID)
	if err != nil {
		return 0, err
	}
	input, err := NewComposer(cfg).ComposeAcquisition(asset)
	if err != nil {
		return 0, err
	}
	entry, err := a.service.PostEntry(ctx, input)
	if errors.Is(err, ErrSourceConflict) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return entry.ID, nil
}
