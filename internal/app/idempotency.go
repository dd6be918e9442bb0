package app

import (
	"errors"
	"net/http"

	"github.com/meridian-moto/meridian-erp/internal/platform/httpx"
	"github.com/meridian-moto/meridian-erp/internal/shared"
)

// IdempotencyMiddleware rejects replays of POST requests carrying an
// Idempotency-Key header. Keys are scoped per method and path, so one key can
// be reused across different endpoints. When the downstream handler answers
// with a server error the key is released again and the client may retry.
// Requests without the header pass through untouched.
func IdempotencyMiddleware(store *shared.IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			scope := r.Method + " " + r.URL.Path
			if err := store.CheckAndInsert(r.Context(), key, scope); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					httpx.Problem(w, http.StatusConflict, "Duplicate Request", "idempotency key already used for this endpoint")
					return
				}
				httpx.RespondError(w, err)
				return
			}
			rec := &idempotencyRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= http.StatusInternalServerError {
				_ = store.Delete(r.Context(), key)
			}
		})
	}
}

type idempotencyRecorder struct {
	http.ResponseWriter
	status int
}

func (r *idempotencyRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
