package settings

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// Handler manages company settings endpoints.
type Handler struct {
	logger *slog.Logger
	repo   Repository
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers settings routes under a company scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/settings", h.get)
	r.Put("/settings", h.save)
}

type settingsPayload struct {
	DepreciationYears int             `json:"depreciation_years" validate:"required,gt=0,lte=40"`
	SalvagePercent    decimal.Decimal `json:"salvage_percent"`
	Rounding          string          `json:"rounding" validate:"omitempty,oneof=CENTS WHOLE"`
	PartialMonths     bool            `json:"partial_months"`
	Accounts          ChartOfAccounts `json:"accounts"`
	UpdatedAt         time.Time       `json:"updated_at,omitzero"`
}

func toPayload(s Settings) settingsPayload {
	return settingsPayload{
		DepreciationYears: s.DepreciationYears,
		SalvagePercent:    s.SalvagePercent,
		Rounding:          string(s.Rounding),
		PartialMonths:     s.PartialMonths,
		Accounts:          s.Accounts,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	s, err := h.repo.Get(r.Context(), companyID)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toPayload(s))
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var req settingsPayload
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if req.SalvagePercent.IsNegative() || req.SalvagePercent.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		shared.WriteError(w, h.logger, fmt.Errorf("settings: %w: salvage_percent must be in [0, 1)", shared.ErrInvalidInput))
		return
	}
	s := Defaults(companyID)
	s.DepreciationYears = req.DepreciationYears
	s.SalvagePercent = req.SalvagePercent
	if req.Rounding != "" {
		s.Rounding = shared.Rounding(req.Rounding)
	}
	s.PartialMonths = req.PartialMonths
	if len(req.Accounts) > 0 {
		s.Accounts = req.Accounts
	}
	if err := h.repo.Save(r.Context(), s); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	saved, err := h.repo.Get(r.Context(), companyID)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toPayload(saved))
}

func companyFromURL(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("settings: %w: invalid company id", shared.ErrInvalidInput)
	}
	return id, nil
}
