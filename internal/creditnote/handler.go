package creditnote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	accountingShared "github.com/meridian-moto/meridian-erp/internal/accounting/shared"
	"github.com/meridian-moto/meridian-erp/internal/platform/httpx"
)

type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/post", h.Post)
	r.Post("/{id}/refund", h.Refund)
}

type lineRequest struct {
	Description string          `json:"description" validate:"required"`
	Qty         decimal.Decimal `json:"qty" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"required"`
	LineTotal   decimal.Decimal `json:"line_total" validate:"required"`
}

func toLineInputs(reqs []lineRequest) []LineInput {
	lines := make([]LineInput, 0, len(reqs))
	for _, l := range reqs {
		lines = append(lines, LineInput{Description: l.Description, Qty: l.Qty, UnitPrice: l.UnitPrice, LineTotal: l.LineTotal})
	}
	return lines
}

type createRequest struct {
	InvoiceID uuid.UUID       `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Mode      string          `json:"mode" validate:"required,oneof=RECEIVABLE CASH_REFUND"`
	Reason    string          `json:"reason"`
	Lines     []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	note, err := h.service.CreateDraft(r.Context(), CreateInput{
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		TaxAmount: req.TaxAmount,
		Mode:      Mode(req.Mode),
		Reason:    req.Reason,
		Lines:     toLineInputs(req.Lines),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

type updateRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Mode      string          `json:"mode" validate:"required,oneof=RECEIVABLE CASH_REFUND"`
	Reason    string          `json:"reason"`
	Lines     []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	note, err := h.service.UpdateDraft(r.Context(), id, UpdateInput{
		Amount:    req.Amount,
		TaxAmount: req.TaxAmount,
		Mode:      Mode(req.Mode),
		Reason:    req.Reason,
		Lines:     toLineInputs(req.Lines),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.List(r.Context(), Status(r.URL.Query().Get("status")))
	if err != nil {
		h.logger.Error("list credit notes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, notes)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	note, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDraft(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type actorRequest struct {
	ActorID int64 `json:"actor_id" validate:"required"`
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Post)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Refund)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, int64) (CreditNote, error)) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	note, err := fn(r.Context(), id, req.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) noteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "credit note id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoteNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyPosted),
		errors.Is(err, ErrNotPosted),
		errors.Is(err, ErrImmutableNote),
		errors.Is(err, accountingShared.ErrPeriodClosed),
		errors.Is(err, accountingShared.ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrLineMismatch),
		errors.Is(err, ErrInvalidMode),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrNoLines):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("credit note request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
