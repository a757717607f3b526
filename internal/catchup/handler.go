package catchup

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/herdledger/herdledger/internal/shared"
)

// Enqueuer hands a catch-up run to the background worker. Satisfied by the
// jobs client.
type Enqueuer interface {
	EnqueueCatchup(ctx context.Context, companyID int64) error
}

// Handler exposes the catch-up endpoints. A run endpoint executes
// synchronously and streams nothing; the enqueue endpoint defers the same
// work to the worker binary for large backfills.
type Handler struct {
	logger    *slog.Logger
	processor *Processor
	queue     Enqueuer
}

func NewHandler(logger *slog.Logger, processor *Processor, queue Enqueuer) *Handler {
	return &Handler{logger: logger, processor: processor, queue: queue}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/catchup/run", h.run)
	r.Post("/catchup/enqueue", h.enqueue)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	progress, err := h.processor.Run(r.Context(), companyID)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, progress)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	companyID, err := companyFromURL(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if h.queue == nil {
		shared.WriteError(w, h.logger, fmt.Errorf("catchup: %w: job queue not configured", shared.ErrStoreUnavailable))
		return
	}
	if err := h.queue.EnqueueCatchup(r.Context(), companyID); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, map[string]any{
		"enqueued":   true,
		"company_id": companyID,
	})
}

func companyFromURL(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("catchup: %w: invalid company id", shared.ErrInvalidInput)
	}
	return id, nil
}
