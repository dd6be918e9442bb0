package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-moto/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-moto/meridian-erp/internal/accounting/journals"
	"github.com/meridian-moto/meridian-erp/internal/accounting/periods"
	"github.com/meridian-moto/meridian-erp/internal/ap"
	"github.com/meridian-moto/meridian-erp/internal/cod"
	"github.com/meridian-moto/meridian-erp/internal/creditnote"
	"github.com/meridian-moto/meridian-erp/internal/inventory"
	"github.com/meridian-moto/meridian-erp/internal/observability"
	"github.com/meridian-moto/meridian-erp/internal/reports"
	"github.com/meridian-moto/meridian-erp/internal/shared"
	"github.com/meridian-moto/meridian-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AccountsHandler   *accounts.Handler
	PeriodsHandler    *periods.Handler
	JournalsHandler   *journals.Handler
	InventoryHandler  *inventory.Handler
	APHandler         *ap.Handler
	CreditNoteHandler *creditnote.Handler
	CodHandler        *cod.Handler
	ReportsHandler    *reports.Handler
	JobsHandler       *jobs.Handler
	Metrics           *observability.Metrics
	Idempotency       *shared.IdempotencyStore
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}
	if params.Idempotency != nil {
		r.Use(IdempotencyMiddleware(params.Idempotency))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","version":"` + Version + `"}`))
	})

	r.Route("/accounting", func(r chi.Router) {
		r.Route("/accounts", params.AccountsHandler.MountRoutes)
		r.Route("/periods", params.PeriodsHandler.MountRoutes)
		r.Route("/journals", params.JournalsHandler.MountRoutes)
	})
	r.Route("/inventory", params.InventoryHandler.MountRoutes)
	r.Route("/ap", params.APHandler.MountRoutes)
	r.Route("/credit-notes", params.CreditNoteHandler.MountRoutes)
	r.Route("/cod", params.CodHandler.MountRoutes)
	r.Route("/reports", params.ReportsHandler.MountRoutes)
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
