package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	MovementIn              MovementType = "IN"
	MovementOut             MovementType = "OUT"
	MovementAdjustmentPlus  MovementType = "ADJUSTMENT_PLUS"
	MovementAdjustmentMinus MovementType = "ADJUSTMENT_MINUS"
)

// Inbound reports whether the movement adds stock.
func (t MovementType) Inbound() bool {
	return t == MovementIn || t == MovementAdjustmentPlus
}

// IsValid reports whether the movement type is known.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustmentPlus, MovementAdjustmentMinus:
		return true
	default:
		return false
	}
}

// CostLedgerEntry records one stock movement's cost effect. Append only.
type CostLedgerEntry struct {
	ID        int64
	ProductID int64
	Type      MovementType
	Qty       decimal.Decimal
	UnitCost  decimal.Decimal
	TotalCost decimal.Decimal
	Reference internalShared.Reference
	CreatedAt time.Time
}

// ProductCostState is the current costing snapshot per product, derived from
// the cost ledger and rebuildable from it.
type ProductCostState struct {
	ProductID int64
	OnHandQty decimal.Decimal
	AvgCost   decimal.Decimal
	UpdatedAt time.Time
}

// BackorderStatus enumerates backorder lifecycle values.
type BackorderStatus string

const (
	BackorderWaitingStock BackorderStatus = "WAITING_STOCK"
	BackorderReady        BackorderStatus = "READY"
	BackorderFulfilled    BackorderStatus = "FULFILLED"
	BackorderCanceled     BackorderStatus = "CANCELED"
)

// Backorder tracks pending fulfillment against insufficient stock.
type Backorder struct {
	ID          uuid.UUID
	OrderItemID uuid.UUID
	ProductID   int64
	QtyPending  decimal.Decimal
	Status      BackorderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MovementInput describes a stock movement request. UnitCost is required for
// inbound movements and must be absent for outbound ones, where the current
// average cost applies.
type MovementInput struct {
	ProductID      int64
	Type           MovementType
	Qty            decimal.Decimal
	UnitCost       *decimal.Decimal
	Reference      internalShared.Reference
	AllowBackorder bool
	// OrderItemID attributes the backorder when AllowBackorder lets on-hand go negative.
	OrderItemID *uuid.UUID
}

// MovementResult reports the post-movement state the caller needs to build
// its own journal lines.
type MovementResult struct {
	LedgerID  int64
	OnHandQty decimal.Decimal
	AvgCost   decimal.Decimal
	UnitCost  decimal.Decimal
	TotalCost decimal.Decimal
}

var (
	// ErrInsufficientStock indicates the movement would drive on-hand negative.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInvalidQuantity indicates qty must be positive.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrUnitCostRequired indicates an inbound movement without a unit cost.
	ErrUnitCostRequired = errors.New("inventory: unit cost required for inbound movements")
	// ErrUnitCostForbidden indicates a caller-supplied cost on an outbound movement.
	ErrUnitCostForbidden = errors.New("inventory: outbound movements use the current average cost")
	// ErrUnknownMovement indicates an unsupported movement type.
	ErrUnknownMovement = errors.New("inventory: unknown movement type")
	// ErrStateNotFound indicates no cost state row for the product.
	ErrStateNotFound = errors.New("inventory: product cost state not found")
	// ErrBackorderNotFound indicates a missing backorder row.
	ErrBackorderNotFound = errors.New("inventory: backorder not found")
)
