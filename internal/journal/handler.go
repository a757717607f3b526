package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// Handler manages journal endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	monthly *MonthlyRunner
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, monthly *MonthlyRunner) *Handler {
	return &Handler{logger: logger, service: service, monthly: monthly}
}

// MountRoutes registers journal routes under a company scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/journal", h.listEntries)
	r.Get("/journal/{entryID}", h.getEntry)
	r.Post("/journal/manual", h.postManual)
	r.Post("/depreciation/run", h.runMonthly)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	period, err := shared.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		shared.WriteError(w, h.logger, fmt.Errorf("journal: %w: period must be YYYY-MM", shared.ErrInvalidInput))
		return
	}
	entries, err := h.service.ListByPeriod(r.Context(), companyID, period)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"period":  period.Code(),
		"entries": entries,
	})
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, fmt.Errorf("journal: %w: invalid entry id", shared.ErrInvalidInput))
		return
	}
	entry, err := h.service.GetEntry(r.Context(), companyID, id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

type manualLineRequest struct {
	AccountCode string          `json:"account_code" validate:"required"`
	AccountName string          `json:"account_name"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	AssetID     *int64          `json:"asset_id,omitempty"`
}

type manualEntryRequest struct {
	EntryDate   string              `json:"entry_date"`
	Description string              `json:"description" validate:"required"`
	SourceKey   string              `json:"source_key" validate:"required"`
	Lines       []manualLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) postManual(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var req manualEntryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	input := EntryInput{
		CompanyID:   companyID,
		Description: req.Description,
		SourceID:    uuid.New(),
		SourceKey:   req.SourceKey,
	}
	if req.EntryDate != "" {
		if input.EntryDate, err = time.Parse("2006-01-02", req.EntryDate); err != nil {
			shared.WriteError(w, h.logger, fmt.Errorf("journal: %w: entry_date must be YYYY-MM-DD", shared.ErrInvalidInput))
			return
		}
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			AccountCode: line.AccountCode,
			AccountName: line.AccountName,
			Description: line.Description,
			Debit:       line.Debit,
			Credit:      line.Credit,
			AssetID:     line.AssetID,
		})
	}
	entry, err := h.service.PostManualAdjustment(r.Context(), input)
	if err != nil {
		if errors.Is(err, ErrSourceConflict) {
			shared.WriteJSON(w, http.StatusConflict, shared.ErrorResponse{Error: err.Error()})
			return
		}
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, entry)
}

type runMonthlyRequest struct {
	Period string `json:"period" validate:"required"`
}

func (h *Handler) runMonthly(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var req runMonthlyRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	period, err := shared.ParsePeriod(req.Period)
	if err != nil {
		shared.WriteError(w, h.logger, fmt.Errorf("journal: %w: period must be YYYY-MM", shared.ErrInvalidInput))
		return
	}
	entry, err := h.monthly.PostMonth(r.Context(), companyID, period)
	if err != nil {
		switch {
		case errors.Is(err, ErrSourceConflict):
			shared.WriteJSON(w, http.StatusConflict, shared.ErrorResponse{Error: "depreciation already posted for " + period.Code()})
		case errors.Is(err, ErrNothingToCompose):
			shared.WriteJSON(w, http.StatusOK, map[string]any{"period": period.Code(), "posted": false})
		default:
			shared.WriteError(w, h.logger, err)
		}
		return
	}
	shared.WriteJSON(w, http.StatusCreated, entry)
}

func companyFromURL(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("journal: %w: invalid company id", shared.ErrInvalidInput)
	}
	return id, nil
}
