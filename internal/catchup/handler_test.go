package catchup

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	companyIDs []int64
}

func (s *stubEnqueuer) EnqueueCatchup(_ context.Context, companyID int64) error {
	s.companyIDs = append(s.companyIDs, companyID)
	return nil
}

func testRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/companies/{companyID}", h.MountRoutes)
	return r
}

func TestEnqueueHandsRunToWorker(t *testing.T) {
	queue := &stubEnqueuer{}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, queue)
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/companies/3/catchup/enqueue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []int64{3}, queue.companyIDs)
}

func TestEnqueueRejectsInvalidCompany(t *testing.T) {
	queue := &stubEnqueuer{}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, queue)
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/companies/zero/catchup/enqueue", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Empty(t, queue.companyIDs)
}
