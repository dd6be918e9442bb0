package reports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-moto/meridian-erp/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pl", h.ProfitAndLoss)
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/vat", h.VatSummary)
	r.Get("/ap-aging", h.APAging)
	r.Post("/invalidate", h.Invalidate)
}

// Invalidate drops cached reports, for use after batch imports or manual
// ledger maintenance.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.logger.Error("invalidate report cache", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	year, month, ok := yearMonth(w, r)
	if !ok {
		return
	}
	report, err := h.service.ProfitAndLoss(r.Context(), year, month)
	if err != nil {
		h.logger.Error("build profit and loss", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	year, month, ok := yearMonth(w, r)
	if !ok {
		return
	}
	report, err := h.service.TrialBalance(r.Context(), year, month)
	if err != nil {
		h.logger.Error("build trial balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) VatSummary(w http.ResponseWriter, r *http.Request) {
	year, month, ok := yearMonth(w, r)
	if !ok {
		return
	}
	report, err := h.service.VatSummary(r.Context(), year, month)
	if err != nil {
		h.logger.Error("build vat summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) APAging(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.APAging(r.Context())
	if err != nil {
		h.logger.Error("build ap aging", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func yearMonth(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2200 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "year must be between 2000 and 2200")
		return 0, 0, false
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "month must be between 1 and 12")
		return 0, 0, false
	}
	return year, month, true
}
