package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/herdledger/herdledger/internal/adjustments"
	"github.com/herdledger/herdledger/internal/catchup"
	"github.com/herdledger/herdledger/internal/disposition"
	"github.com/herdledger/herdledger/internal/integrity"
	"github.com/herdledger/herdledger/internal/journal"
	"github.com/herdledger/herdledger/internal/ledger"
	"github.com/herdledger/herdledger/internal/observability"
	"github.com/herdledger/herdledger/internal/reconcile"
	"github.com/herdledger/herdledger/internal/settings"
	"github.com/herdledger/herdledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	LedgerHandler      *ledger.Handler
	JournalHandler     *journal.Handler
	AdjustmentsHandler *adjustments.Handler
	DispositionHandler *disposition.Handler
	ReconcileHandler   *reconcile.Handler
	CatchupHandler     *catchup.Handler
	IntegrityHandler   *integrity.Handler
	SettingsHandler    *settings.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with HerdLedger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/companies/{companyID}", func(r chi.Router) {
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.JournalHandler != nil {
			params.JournalHandler.MountRoutes(r)
		}
		if params.AdjustmentsHandler != nil {
			params.AdjustmentsHandler.MountRoutes(r)
		}
		if params.DispositionHandler != nil {
			params.DispositionHandler.MountRoutes(r)
		}
		if params.ReconcileHandler != nil {
			params.ReconcileHandler.MountRoutes(r)
		}
		if params.CatchupHandler != nil {
			params.CatchupHandler.MountRoutes(r)
		}
		if params.IntegrityHandler != nil {
			params.IntegrityHandler.MountRoutes(r)
		}
		if params.SettingsHandler != nil {
			params.SettingsHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
