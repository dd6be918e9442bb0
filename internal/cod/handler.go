package cod

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
	r.Post("/collections", h.RecordCollection)
	r.Get("/outstanding", h.Outstanding)
	r.Get("/drivers/{driverID}/collections", h.ListCollections)
	r.Get("/drivers/{driverID}/settlements", h.ListSettlements)
	r.Post("/drivers/{driverID}/settlements", h.SettleDriver)
	r.Get("/settlements/{id}", h.GetSettlement)
}

type recordCollectionRequest struct {
	InvoiceID   uuid.UUID       `json:"invoice_id" validate:"required"`
	DriverID    uuid.UUID       `json:"driver_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	CollectedAt *time.Time      `json:"collected_at"`
}

func (h *Handler) RecordCollection(w http.ResponseWriter, r *http.Request) {
	var req recordCollectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := RecordCollectionInput{InvoiceID: req.InvoiceID, DriverID: req.DriverID, Amount: req.Amount}
	if req.CollectedAt != nil {
		input.CollectedAt = *req.CollectedAt
	}
	collection, err := h.service.RecordCollection(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, collection)
}

func (h *Handler) Outstanding(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.OutstandingByDriver(r.Context())
	if err != nil {
		h.logger.Error("list outstanding cod", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balances)
}

func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.driverID(w, r)
	if !ok {
		return
	}
	collections, err := h.service.ListCollections(r.Context(), driverID, CollectionStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, collections)
}

func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.driverID(w, r)
	if !ok {
		return
	}
	settlements, err := h.service.ListSettlements(r.Context(), driverID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settlements)
}

type settleDriverRequest struct {
	ReceivedBy int64  `json:"received_by" validate:"required"`
	Note       string `json:"note"`
	AccountID  int64  `json:"account_id"`
}

func (h *Handler) SettleDriver(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.driverID(w, r)
	if !ok {
		return
	}
	var req settleDriverRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	settlement, err := h.service.SettleDriver(r.Context(), SettleDriverInput{
		DriverID:   driverID,
		ReceivedBy: req.ReceivedBy,
		Note:       req.Note,
		AccountID:  req.AccountID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settlement)
}

func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "settlement id must be a UUID")
		return
	}
	settlement, err := h.service.GetSettlement(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settlement)
}

func (h *Handler) driverID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "driverID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "driver id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSettlementNotFound), errors.Is(err, ErrCollectionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNothingToSettle),
		errors.Is(err, ErrDuplicateCollection),
		errors.Is(err, accountingShared.ErrPeriodClosed),
		errors.Is(err, accountingShared.ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("cod request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
