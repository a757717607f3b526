package adjustments

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// Handler manages balance adjustment endpoints.
type Handler struct {
	logger *slog.Logger
	repo   Repository
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers adjustment routes under a company scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/adjustments", h.listPending)
	r.Post("/adjustments", h.create)
	r.Get("/adjustments/{adjustmentID}", h.get)
}

type createRequest struct {
	PriorPeriod string          `json:"prior_period" validate:"required"`
	Type        string          `json:"type" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var req createRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	period, err := shared.ParsePeriod(req.PriorPeriod)
	if err != nil {
		shared.WriteError(w, h.logger, fmt.Errorf("adjustments: %w: prior_period must be YYYY-MM", shared.ErrInvalidInput))
		return
	}
	b, err := h.repo.Create(r.Context(), BalanceAdjustment{
		CompanyID:   companyID,
		PriorPeriod: period,
		Type:        Type(req.Type),
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	pending, err := h.repo.ListPending(r.Context(), companyID)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"adjustments": pending})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "adjustmentID"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, fmt.Errorf("adjustments: %w: invalid adjustment id", shared.ErrInvalidInput))
		return
	}
	b, err := h.repo.Get(r.Context(), companyID, id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, b)
}

func companyFromURL(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("adjustments: %w: invalid company id", shared.ErrInvalidInput)
	}
	return id, nil
}
