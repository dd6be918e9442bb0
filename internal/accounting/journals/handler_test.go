package journals

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *mockRepository) {
	t.Helper()
	repo := newMockRepository()
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time {
		return time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	})
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, repo
}

func postBody(reference uuid.UUID, debit, credit string) []byte {
	payload := map[string]any{
		"date":           "2026-03-10",
		"reference_kind": "MANUAL",
		"reference_id":   reference.String(),
		"description":    "manual entry",
		"created_by":     7,
		"lines": []map[string]any{
			{"account_id": 1000, "debit": debit},
			{"account_id": 4000, "credit": credit},
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func TestHandlerCreateJournal(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(postBody(uuid.New(), "150.00", "150.00")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var view struct {
		ID       int64  `json:"id"`
		Date     string `json:"date"`
		PostedAt string `json:"posted_at"`
		Lines    []struct {
			AccountID int64 `json:"account_id"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, int64(1), view.ID)
	assert.Equal(t, "2026-03-10", view.Date)
	require.Len(t, view.Lines, 2)
}

func TestHandlerCreateJournalRoundsLineAmounts(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(postBody(uuid.New(), "10.005", "10.005")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var view struct {
		Lines []struct {
			Debit  string `json:"debit"`
			Credit string `json:"credit"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Lines, 2)
	assert.Equal(t, "10.01", view.Lines[0].Debit)
	assert.Equal(t, "10.01", view.Lines[1].Credit)
}

func TestHandlerUnbalancedRejected(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(postBody(uuid.New(), "150.00", "149.00")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerClosedPeriodConflict(t *testing.T) {
	r, repo := newTestRouter(t)
	repo.closePeriod(2026, time.March)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(postBody(uuid.New(), "150.00", "150.00")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerMutationRejected(t *testing.T) {
	r, _ := newTestRouter(t)

	created := httptest.NewRecorder()
	r.ServeHTTP(created, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(postBody(uuid.New(), "150.00", "150.00"))))
	require.Equal(t, http.StatusCreated, created.Code)

	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, "/1", nil))
		assert.Equal(t, http.StatusConflict, rec.Code, method)
	}
}

func TestHandlerGetNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerReverse(t *testing.T) {
	r, _ := newTestRouter(t)

	created := httptest.NewRecorder()
	r.ServeHTTP(created, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(postBody(uuid.New(), "150.00", "150.00"))))
	require.Equal(t, http.StatusCreated, created.Code)

	body := bytes.NewReader([]byte(`{"actor_id": 9}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/1/reverse", body))
	require.Equal(t, http.StatusCreated, rec.Code)

	var view struct {
		Reference string `json:"reference"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Contains(t, view.Reference, "REVERSAL:")
}

func TestHandlerListPaginated(t *testing.T) {
	r, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(postBody(uuid.New(), "150.00", "150.00"))))
		require.Equal(t, http.StatusCreated, rec.Code, fmt.Sprintf("entry %d", i))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?page=1&per_page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data       []json.RawMessage `json:"data"`
		Pagination struct {
			Page       int `json:"page"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 3, resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
}
