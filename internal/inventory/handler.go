package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-moto/meridian-erp/internal/platform/httpx"
	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

// RebuildQueue hands cost-state rebuilds to the background worker.
type RebuildQueue interface {
	EnqueueCostRebuild(ctx context.Context, productID int64) error
}

type Handler struct {
	service   *Service
	queue     RebuildQueue
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs the inventory handler. queue may be nil; rebuilds
// then run synchronously in the request.
func NewHandler(logger *slog.Logger, service *Service, queue RebuildQueue) *Handler {
	return &Handler{logger: logger, service: service, queue: queue, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.RecordMovement)
	r.Get("/products/{productID}/cost-state", h.GetState)
	r.Get("/products/{productID}/ledger", h.ListLedger)
	r.Post("/products/{productID}/rebuild", h.Rebuild)
	r.Post("/products/{productID}/backorders/release", h.ReleaseBackorders)
}

type movementRequest struct {
	ProductID      int64            `json:"product_id" validate:"required"`
	MovementType   string           `json:"movement_type" validate:"required"`
	Qty            decimal.Decimal  `json:"qty" validate:"required"`
	UnitCost       *decimal.Decimal `json:"unit_cost"`
	ReferenceKind  string           `json:"reference_kind" validate:"required"`
	ReferenceID    uuid.UUID        `json:"reference_id" validate:"required"`
	AllowBackorder bool             `json:"allow_backorder"`
	OrderItemID    *uuid.UUID       `json:"order_item_id"`
}

type movementResponse struct {
	LedgerID  int64           `json:"ledger_id"`
	OnHandQty decimal.Decimal `json:"on_hand_qty"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.RecordMovement(r.Context(), MovementInput{
		ProductID:      req.ProductID,
		Type:           MovementType(req.MovementType),
		Qty:            req.Qty,
		UnitCost:       req.UnitCost,
		Reference:      internalShared.Reference{Kind: internalShared.ReferenceKind(req.ReferenceKind), ID: req.ReferenceID},
		AllowBackorder: req.AllowBackorder,
		OrderItemID:    req.OrderItemID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movementResponse{
		LedgerID:  result.LedgerID,
		OnHandQty: result.OnHandQty,
		AvgCost:   result.AvgCost,
		UnitCost:  result.UnitCost,
		TotalCost: result.TotalCost,
	})
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	state, err := h.service.GetState(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":  state.ProductID,
		"on_hand_qty": state.OnHandQty,
		"avg_cost":    state.AvgCost,
		"updated_at":  state.UpdatedAt,
	})
}

func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.ListLedger(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	if h.queue != nil {
		err := h.queue.EnqueueCostRebuild(r.Context(), productID)
		if err == nil {
			httpx.JSON(w, http.StatusAccepted, map[string]any{
				"product_id": productID,
				"status":     "queued",
			})
			return
		}
		// Queue unavailable; replay inline so the caller still gets a rebuild.
		h.logger.Warn("enqueue cost rebuild", slog.Int64("product_id", productID), slog.Any("error", err))
	}
	state, err := h.service.RebuildCostState(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":  state.ProductID,
		"on_hand_qty": state.OnHandQty,
		"avg_cost":    state.AvgCost,
	})
}

func (h *Handler) ReleaseBackorders(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	released, err := h.service.ReleaseBackorders(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"released": len(released)})
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "product id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrStateNotFound), errors.Is(err, ErrBackorderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrUnitCostRequired),
		errors.Is(err, ErrUnitCostForbidden),
		errors.Is(err, ErrUnknownMovement),
		errors.Is(err, internalShared.ErrInvalidReference):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
