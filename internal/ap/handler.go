package ap

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

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
	r.Get("/invoices", h.ListInvoices)
	r.Post("/invoices", h.CreateInvoice)
	r.Get("/invoices/{id}", h.GetInvoice)
	r.Get("/invoices/{id}/payments", h.ListPayments)
	r.Post("/invoices/{id}/payments", h.RecordPayment)
}

type invoiceView struct {
	ID              uuid.UUID       `json:"id"`
	SupplierID      uuid.UUID       `json:"supplier_id"`
	PurchaseOrderID *uuid.UUID      `json:"purchase_order_id,omitempty"`
	InvoiceNumber   string          `json:"invoice_number"`
	Total           decimal.Decimal `json:"total"`
	DueDate         string          `json:"due_date"`
	Status          string          `json:"status"`
}

func toInvoiceView(inv SupplierInvoice) invoiceView {
	return invoiceView{
		ID:              inv.ID,
		SupplierID:      inv.SupplierID,
		PurchaseOrderID: inv.PurchaseOrderID,
		InvoiceNumber:   inv.InvoiceNumber,
		Total:           inv.Total,
		DueDate:         inv.DueDate.Format("2006-01-02"),
		Status:          string(inv.Status),
	}
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context(), InvoiceStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.logger.Error("list supplier invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]invoiceView, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, toInvoiceView(inv))
	}
	httpx.JSON(w, http.StatusOK, views)
}

type createInvoiceRequest struct {
	SupplierID      uuid.UUID       `json:"supplier_id" validate:"required"`
	PurchaseOrderID *uuid.UUID      `json:"purchase_order_id"`
	InvoiceNumber   string          `json:"invoice_number" validate:"required"`
	Total           decimal.Decimal `json:"total" validate:"required"`
	DueDate         string          `json:"due_date" validate:"required"`
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "due_date must be YYYY-MM-DD")
		return
	}
	invoice, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		SupplierID:      req.SupplierID,
		PurchaseOrderID: req.PurchaseOrderID,
		InvoiceNumber:   req.InvoiceNumber,
		Total:           req.Total,
		DueDate:         dueDate,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceView(invoice))
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceView(invoice))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

type recordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	AccountID int64           `json:"account_id" validate:"required"`
	PaidAt    string          `json:"paid_at"`
	CreatedBy int64           `json:"created_by" validate:"required"`
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}
	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := RecordPaymentInput{InvoiceID: id, Amount: req.Amount, AccountID: req.AccountID, CreatedBy: req.CreatedBy}
	if req.PaidAt != "" {
		paidAt, err := time.Parse("2006-01-02", req.PaidAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "paid_at must be YYYY-MM-DD")
			return
		}
		input.PaidAt = paidAt
	}
	invoice, payment, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoice": toInvoiceView(invoice),
		"payment": payment,
	})
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "invoice id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrOverpayment),
		errors.Is(err, ErrDuplicateInvoiceNumber),
		errors.Is(err, accountingShared.ErrPeriodClosed),
		errors.Is(err, accountingShared.ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("ap request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
