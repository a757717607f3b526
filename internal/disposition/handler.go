package disposition

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

// Handler manages disposition endpoints.
type Handler struct {
	logger    *slog.Logger
	processor *Processor
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, processor *Processor) *Handler {
	return &Handler{logger: logger, processor: processor}
}

// MountRoutes registers disposition routes under a company scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/dispositions", h.dispose)
	r.Get("/dispositions/{assetID}", h.getByAsset)
}

type disposeRequest struct {
	AssetID    int64           `json:"asset_id" validate:"required,gt=0"`
	Cause      string          `json:"cause" validate:"required"`
	Date       string          `json:"date" validate:"required"`
	SaleAmount decimal.Decimal `json:"sale_amount"`
	Notes      string          `json:"notes"`
}

func (h *Handler) dispose(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var req disposeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		shared.WriteError(w, h.logger, fmt.Errorf("disposition: %w: date must be YYYY-MM-DD", shared.ErrInvalidInput))
		return
	}
	result, err := h.processor.Process(r.Context(), DisposeInput{
		CompanyID:  companyID,
		AssetID:    req.AssetID,
		Cause:      Cause(req.Cause),
		Date:       date,
		SaleAmount: req.SaleAmount,
		Notes:      req.Notes,
	})
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) getByAsset(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	assetID, err := strconv.ParseInt(chi.URLParam(r, "assetID"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, fmt.Errorf("disposition: %w: invalid asset id", shared.ErrInvalidInput))
		return
	}
	d, err := h.processor.GetByAsset(r.Context(), companyID, assetID)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, d)
}

func companyFromURL(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("disposition: %w: invalid company id", shared.ErrInvalidInput)
	}
	return id, nil
}
