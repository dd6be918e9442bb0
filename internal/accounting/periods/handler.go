package periods

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-moto/meridian-erp/internal/accounting/shared"
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
	r.Get("/", h.List)
	r.Post("/", h.Open)
	r.Post("/{year}/{month}/close", h.Close)
}

type periodView struct {
	ID       int64      `json:"id"`
	Month    int        `json:"month"`
	Year     int        `json:"year"`
	IsClosed bool       `json:"is_closed"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
	ClosedBy *int64     `json:"closed_by,omitempty"`
}

func toView(p Period) periodView {
	return periodView{ID: p.ID, Month: p.Month, Year: p.Year, IsClosed: p.IsClosed, ClosedAt: p.ClosedAt, ClosedBy: p.ClosedBy}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	periods, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]periodView, 0, len(periods))
	for _, p := range periods {
		views = append(views, toView(p))
	}
	httpx.JSON(w, http.StatusOK, views)
}

type openPeriodRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req openPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	period, err := h.service.Open(r.Context(), req.Month, req.Year)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(period))
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "year must be numeric")
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "month must be numeric")
		return
	}
	var req struct {
		ClosedBy int64 `json:"closed_by"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	period, err := h.service.Close(r.Context(), month, year, req.ClosedBy)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(period))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrPeriodNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrAlreadyClosed), errors.Is(err, shared.ErrPeriodExists):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("periods request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
