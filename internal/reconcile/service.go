package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/herdledger/herdledger/internal/depreciation"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

const cacheTTL = 5 * time.Minute

// SettingsSource loads per-company configuration.
type SettingsSource interface {
	Get(ctx context.Context, companyID int64) (settings.Settings, error)
}

// Service computes the monthly reconciliation report. Results are cached in
// redis and concurrent builds of the same year collapse onto one computation.
type Service struct {
	repo     Repository
	settings SettingsSource
	cache    *redis.Client
	group    singleflight.Group
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, settings SettingsSource, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{repo: repo, settings: settings, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ReconcileYear returns one row per month of the year, through the current
// month for the current year.
func (s *Service) ReconcileYear(ctx context.Context, companyID int64, year int) ([]Row, error) {
	key := fmt.Sprintf("herd:recon:%d:%d", companyID, year)
	if rows, ok := s.cached(ctx, key); ok {
		return rows, nil
	}
	result := s.group.DoChan(key, func() (interface{}, error) {
		rows, err := s.build(context.WithoutCancel(ctx), companyID, year)
		if err != nil {
			return nil, err
		}
		s.store(context.WithoutCancel(ctx), key, rows)
		return rows, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Row), nil
	}
}

// ReconcileMonth returns the row for a single period.
func (s *Service) ReconcileMonth(ctx context.Context, companyID int64, period shared.Period) (Row, error) {
	rows, err := s.ReconcileYear(ctx, companyID, period.Year)
	if err != nil {
		return Row{}, err
	}
	for _, row := range rows {
		if row.Period == period {
			return row, nil
		}
	}
	return Row{}, shared.ErrNotFound
}

// DetectDrift returns only the rows whose journal and schedule totals
// disagree beyond a cent.
func (s *Service) DetectDrift(ctx context.Context, companyID int64, year int) ([]Row, error) {
	rows, err := s.ReconcileYear(ctx, companyID, year)
	if err != nil {
		return nil, err
	}
	var flagged []Row
	for _, row := range rows {
		if row.DriftFlagged {
			flagged = append(flagged, row)
		}
	}
	return flagged, nil
}

// Invalidate drops the cached report for a company/year after a mutation.
func (s *Service) Invalidate(ctx context.Context, companyID int64, year int) {
	if s.cache == nil {
		return
	}
	key := fmt.Sprintf("herd:recon:%d:%d", companyID, year)
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("reconcile cache invalidate", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) build(ctx context.Context, companyID int64, year int) ([]Row, error) {
	cfg, err := s.settings.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	engine := depreciation.NewEngine(cfg)

	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	opening, err := s.repo.CountActiveBefore(ctx, companyID, yearStart)
	if err != nil {
		return nil, err
	}
	windows, err := s.repo.AssetsDepreciableIn(ctx, companyID, year)
	if err != nil {
		return nil, err
	}

	lastMonth := time.December
	if now := s.now(); year == now.Year() {
		lastMonth = now.Month()
	}

	var months []MonthFacts
	for m := time.January; m <= lastMonth; m++ {
		period := shared.Period{Year: year, Month: m}
		additions, err := s.repo.AdditionsIn(ctx, companyID, period)
		if err != nil {
			return nil, err
		}
		disposals, err := s.repo.DisposalsIn(ctx, companyID, period)
		if err != nil {
			return nil, err
		}
		journalTotal, err := s.repo.JournalDepreciationTotal(ctx, companyID, period)
		if err != nil {
			return nil, err
		}
		months = append(months, MonthFacts{
			Period:              period,
			Additions:           additions,
			Disposals:           disposals,
			JournalDepreciation: journalTotal,
			LedgerDepreciation:  scheduleTotal(engine, windows, period),
		})
	}
	return BuildRows(opening, months), nil
}

// scheduleTotal sums the engine charge for every asset in service during the
// period. The month of disposal accrues nothing, matching the engine's month
// convention.
func scheduleTotal(engine depreciation.Engine, windows []AssetWindow, period shared.Period) decimal.Decimal {
	sum := decimal.Zero
	for _, w := range windows {
		if w.DisposedAt != nil && w.DisposedAt.Before(period.Next().Start()) {
			continue
		}
		sum = sum.Add(engine.ChargeForPeriod(w.Asset, period))
	}
	return sum
}

func (s *Service) cached(ctx context.Context, key string) ([]Row, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []Row
	if err := json.Unmarshal(payload, &rows); err != nil {
		s.logger.Warn("reconcile cache decode", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return rows, true
}

func (s *Service) store(ctx context.Context, key string, rows []Row) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, cacheTTL).Err(); err != nil {
		s.logger.Warn("reconcile cache store", slog.String("key", key), slog.Any("error", err))
	}
}
