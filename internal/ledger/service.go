package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/internal/shared"
)

// AcquisitionPoster posts the acquisition journal entry for a newly
// registered asset. Implemented by the journal module.
type AcquisitionPoster interface {
	PostAcquisition(ctx context.Context, a Asset) (int64, error)
}

// SettingsSource loads per-company configuration.
type SettingsSource interface {
	Get(ctx context.Context, companyID int64) (settings.Settings, error)
}

// Service owns asset registration and listing.
type Service struct {
	repo     Repository
	settings SettingsSource
	poster   AcquisitionPoster
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, settings SettingsSource, poster AcquisitionPoster, logger *slog.Logger) *Service {
	return &Service{repo: repo, settings: settings, poster: poster, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RegisterInput carries a raw asset record from the import pipeline or a
// manual entry. Salvage value falls back to the company salvage percent when
// unset.
type RegisterInput struct {
	CompanyID       int64
	TagNumber       string
	BirthDate       time.Time
	FreshenDate     time.Time
	PurchasePrice   decimal.Decimal
	SalvageValue    *decimal.Decimal
	Method          Method
	AcquisitionType AcquisitionType
}

// Register creates an active asset and posts its acquisition entry.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Asset, error) {
	cfg, err := s.settings.Get(ctx, in.CompanyID)
	if err != nil {
		return Asset{}, err
	}
	method := in.Method
	if method == "" {
		method = MethodStraightLine
	}
	if !ValidMethod(method) {
		return Asset{}, fmt.Errorf("ledger: %w: unknown depreciation method %q", shared.ErrInvalidInput, in.Method)
	}
	acq := in.AcquisitionType
	if acq == "" {
		acq = AcquisitionPurchased
	}
	if acq != AcquisitionPurchased && acq != AcquisitionRaised {
		return Asset{}, fmt.Errorf("ledger: %w: unknown acquisition type %q", shared.ErrInvalidInput, in.AcquisitionType)
	}
	salvage := decimal.Zero
	if in.SalvageValue != nil {
		salvage = *in.SalvageValue
	} else {
		salvage = shared.RoundAmount(in.PurchasePrice.Mul(cfg.SalvagePercent), cfg.Rounding)
	}
	asset := Asset{
		CompanyID:         in.CompanyID,
		TagNumber:         in.TagNumber,
		BirthDate:         in.BirthDate,
		FreshenDate:       in.FreshenDate,
		PurchasePrice:     in.PurchasePrice,
		SalvageValue:      salvage,
		Method:            method,
		Status:            StatusActive,
		CurrentValue:      in.PurchasePrice,
		TotalDepreciation: decimal.Zero,
		AcquisitionType:   acq,
	}
	if err := asset.Validate(); err != nil {
		return Asset{}, err
	}
	created, err := s.repo.Create(ctx, asset)
	if err != nil {
		return Asset{}, err
	}
	if s.poster != nil {
		if _, err := s.poster.PostAcquisition(ctx, created); err != nil {
			s.logger.Error("post acquisition entry", slog.String("tag", created.TagNumber), slog.Any("error", err))
			return created, fmt.Errorf("ledger: asset %s registered but acquisition entry failed: %w", created.TagNumber, err)
		}
	}
	return created, nil
}

// Get fetches one asset.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Asset, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List returns a page of assets.
func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Asset, shared.Pagination, error) {
	return s.repo.List(ctx, companyID, filter)
}

// RowStatus tags per-row import outcomes.
type RowStatus string

const (
	RowCreated   RowStatus = "CREATED"
	RowDuplicate RowStatus = "DUPLICATE"
	RowFailed    RowStatus = "FAILED"
)

// RowResult reports the outcome for one imported record.
type RowResult struct {
	TagNumber string    `json:"tag_number"`
	AssetID   int64     `json:"asset_id,omitempty"`
	Status    RowStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// ImportResult summarises an import run.
type ImportResult struct {
	Processed int         `json:"processed"`
	Created   int         `json:"created"`
	Rows      []RowResult `json:"rows"`
}

// ImportRecords registers each record, continuing past per-row failures.
// Duplicate tags are reported, not treated as a run failure.
func (s *Service) ImportRecords(ctx context.Context, companyID int64, records []RegisterInput) (ImportResult, error) {
	result := ImportResult{}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rec.CompanyID = companyID
		result.Processed++
		row := RowResult{TagNumber: rec.TagNumber}
		asset, err := s.Register(ctx, rec)
		switch {
		case err == nil:
			row.Status = RowCreated
			row.AssetID = asset.ID
			result.Created++
		case errors.Is(err, ErrTagExists):
			row.Status = RowDuplicate
			row.Error = err.Error()
		default:
			row.Status = RowFailed
			row.Error = err.Error()
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}
