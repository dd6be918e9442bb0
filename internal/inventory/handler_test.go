package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	enqueued []int64
	err      error
}

func (q *stubQueue) EnqueueCostRebuild(ctx context.Context, productID int64) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, productID)
	return nil
}

func newTestRouter(t *testing.T, queue RebuildQueue) (*chi.Mux, *Service) {
	t.Helper()
	svc, _ := newTestService()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc, queue)
	router := chi.NewRouter()
	router.Route("/inventory", handler.MountRoutes)
	return router, svc
}

func TestHandlerRebuildQueuesWorkerTask(t *testing.T) {
	queue := &stubQueue{}
	router, svc := newTestRouter(t, queue)
	receive(t, svc, 41, "10", "5000")

	req := httptest.NewRequest(http.MethodPost, "/inventory/products/41/rebuild", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, []int64{41}, queue.enqueued)
}

func TestHandlerRebuildFallsBackWhenQueueDown(t *testing.T) {
	queue := &stubQueue{err: errors.New("redis gone")}
	router, svc := newTestRouter(t, queue)
	receive(t, svc, 41, "10", "5000")

	req := httptest.NewRequest(http.MethodPost, "/inventory/products/41/rebuild", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "10", body["on_hand_qty"])
}

func TestHandlerRebuildSynchronousWithoutQueue(t *testing.T) {
	router, svc := newTestRouter(t, nil)
	receive(t, svc, 41, "4", "2500")

	req := httptest.NewRequest(http.MethodPost, "/inventory/products/41/rebuild", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2500", body["avg_cost"])
}
