package reconcile

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/herdledger/herdledger/internal/shared"
)

// Handler manages reconciliation endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reconciliation routes under a company scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reconciliation/{year}", h.reconcileYear)
	r.Get("/reconciliation/{year}/export.csv", h.exportCSV)
	r.Get("/reconciliation/{year}/drift", h.drift)
	r.Get("/reconciliation/{year}/{month}", h.reconcileMonth)
	r.Delete("/reconciliation/{year}/cache", h.invalidate)
}

func (h *Handler) reconcileYear(w http.ResponseWriter, r *http.Request) {
	companyID, year, err := scopeFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	rows, err := h.service.ReconcileYear(r.Context(), companyID, year)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"year": year,
		"rows": rows,
	})
}

func (h *Handler) drift(w http.ResponseWriter, r *http.Request) {
	companyID, year, err := scopeFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	rows, err := h.service.DetectDrift(r.Context(), companyID, year)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"year": year,
		"rows": rows,
	})
}

func (h *Handler) reconcileMonth(w http.ResponseWriter, r *http.Request) {
	companyID, year, err := scopeFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		shared.WriteError(w, h.logger, fmt.Errorf("reconcile: %w: month must be 1..12", shared.ErrInvalidInput))
		return
	}
	row, err := h.service.ReconcileMonth(r.Context(), companyID, shared.Period{Year: year, Month: time.Month(month)})
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, row)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	companyID, year, err := scopeFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	rows, err := h.service.ReconcileYear(r.Context(), companyID, year)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="reconciliation_%d_%d.csv"`, companyID, year))
	if err := WriteCSV(w, companyID, year, rows); err != nil {
		h.logger.Error("write reconciliation csv", slog.Any("error", err))
	}
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	companyID, year, err := scopeFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	h.service.Invalidate(r.Context(), companyID, year)
	w.WriteHeader(http.StatusNoContent)
}

func scopeFromURL(r *http.Request) (companyID int64, year int, err error) {
	companyID, err = strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil || companyID <= 0 {
		return 0, 0, fmt.Errorf("reconcile: %w: invalid company id", shared.ErrInvalidInput)
	}
	year, err = strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1900 || year > 9999 {
		return 0, 0, fmt.Errorf("reconcile: %w: invalid year", shared.ErrInvalidInput)
	}
	return companyID, year, nil
}
