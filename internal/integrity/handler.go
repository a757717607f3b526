package integrity

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/herdledger/herdledger/internal/shared"
)

// Handler manages integrity endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers integrity routes under a company scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/integrity/check", h.check)
	r.Post("/integrity/repair", h.repair)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	companyID, period, err := scopeFromRequest(r, r.URL.Query().Get("period"))
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	report, err := h.service.Check(r.Context(), companyID, period)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

type repairRequest struct {
	Period string `json:"period" validate:"required"`
}

func (h *Handler) repair(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	companyID, period, err := scopeFromRequest(r, req.Period)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	outcome, err := h.service.Repair(r.Context(), companyID, period)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, outcome)
}

func scopeFromRequest(r *http.Request, periodCode string) (int64, shared.Period, error) {
	companyID, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil || companyID <= 0 {
		return 0, shared.Period{}, fmt.Errorf("integrity: %w: invalid company id", shared.ErrInvalidInput)
	}
	period, err := shared.ParsePeriod(periodCode)
	if err != nil {
		return 0, shared.Period{}, fmt.Errorf("integrity: %w: period must be YYYY-MM", shared.ErrInvalidInput)
	}
	return companyID, period, nil
}
