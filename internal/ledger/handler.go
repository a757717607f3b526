package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/herdledger/herdledger/internal/shared"
)

// Handler manages asset endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers asset routes under a company scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/assets", h.listAssets)
	r.Post("/assets", h.registerAsset)
	r.Post("/assets/import", h.importAssets)
	r.Get("/assets/{assetID}", h.getAsset)
}

type registerRequest struct {
	TagNumber       string           `json:"tag_number" validate:"required"`
	BirthDate       string           `json:"birth_date"`
	FreshenDate     string           `json:"freshen_date" validate:"required"`
	PurchasePrice   decimal.Decimal  `json:"purchase_price"`
	SalvageValue    *decimal.Decimal `json:"salvage_value,omitempty"`
	Method          string           `json:"method"`
	AcquisitionType string           `json:"acquisition_type"`
}

func (req registerRequest) toInput(companyID int64) (RegisterInput, error) {
	freshen, err := time.Parse("2006-01-02", req.FreshenDate)
	if err != nil {
		return RegisterInput{}, fmt.Errorf("ledger: %w: freshen_date must be YYYY-MM-DD", shared.ErrInvalidInput)
	}
	var birth time.Time
	if req.BirthDate != "" {
		if birth, err = time.Parse("2006-01-02", req.BirthDate); err != nil {
			return RegisterInput{}, fmt.Errorf("ledger: %w: birth_date must be YYYY-MM-DD", shared.ErrInvalidInput)
		}
	}
	return RegisterInput{
		CompanyID:       companyID,
		TagNumber:       req.TagNumber,
		BirthDate:       birth,
		FreshenDate:     freshen,
		PurchasePrice:   req.PurchasePrice,
		SalvageValue:    req.SalvageValue,
		Method:          Method(req.Method),
		AcquisitionType: AcquisitionType(req.AcquisitionType),
	}, nil
}

func (h *Handler) registerAsset(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var req registerRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	input, err := req.toInput(companyID)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	asset, err := h.service.Register(r.Context(), input)
	if err != nil {
		if errors.Is(err, ErrTagExists) {
			shared.WriteJSON(w, http.StatusConflict, shared.ErrorResponse{Error: err.Error()})
			return
		}
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, asset)
}

type importRequest struct {
	Records []registerRequest `json:"records" validate:"required,min=1,dive"`
}

func (h *Handler) importAssets(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var req importRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	records := make([]RegisterInput, 0, len(req.Records))
	for idx, rec := range req.Records {
		input, err := rec.toInput(companyID)
		if err != nil {
			shared.WriteJSON(w, http.StatusUnprocessableEntity, shared.ErrorResponse{Error: fmt.Sprintf("record %d: %v", idx, err)})
			return
		}
		records = append(records, input)
	}
	result, err := h.service.ImportRecords(r.Context(), companyID, records)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) listAssets(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	assets, pagination, err := h.service.List(r.Context(), companyID, ListFilter{
		Status:  Status(q.Get("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"assets":     assets,
		"pagination": pagination,
	})
}

func (h *Handler) getAsset(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "assetID"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, fmt.Errorf("ledger: %w: invalid asset id", shared.ErrInvalidInput))
		return
	}
	asset, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, asset)
}

func companyFromURL(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("ledger: %w: invalid company id", shared.ErrInvalidInput)
	}
	return id, nil
}
