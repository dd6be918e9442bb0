package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

// AuditPort records inventory events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service is the inventory costing engine. It maintains the moving-average
// unit cost per product and the append-only cost ledger. It never posts
// journals itself; callers use the returned total cost to build COGS lines.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) GetState(ctx context.Context, productID int64) (ProductCostState, error) {
	return s.repo.GetState(ctx, productID)
}

func (s *Service) ListLedger(ctx context.Context, productID int64) ([]CostLedgerEntry, error) {
	return s.repo.ListLedger(ctx, productID)
}

func (s *Service) ListBackorders(ctx context.Context, productID int64, status BackorderStatus) ([]Backorder, error) {
	return s.repo.ListBackorders(ctx, productID, status)
}

// RecordMovement appends one cost-ledger row and recomputes the product cost
// state in the same transaction, holding the state row lock so concurrent
// movements on one product serialize.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (MovementResult, error) {
	if input.ProductID == 0 {
		return MovementResult{}, errors.New("inventory: product required")
	}
	if !input.Type.IsValid() {
		return MovementResult{}, fmt.Errorf("%w: %q", ErrUnknownMovement, input.Type)
	}
	if !input.Qty.IsPositive() {
		return MovementResult{}, ErrInvalidQuantity
	}
	if input.Type.Inbound() {
		if input.UnitCost == nil || input.UnitCost.IsNegative() {
			return MovementResult{}, ErrUnitCostRequired
		}
	} else if input.UnitCost != nil {
		return MovementResult{}, ErrUnitCostForbidden
	}
	if err := input.Reference.Validate(); err != nil {
		return MovementResult{}, err
	}

	var result MovementResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		state, err := tx.GetStateForUpdate(ctx, input.ProductID)
		if err != nil && !errors.Is(err, ErrStateNotFound) {
			return err
		}
		if errors.Is(err, ErrStateNotFound) {
			state = ProductCostState{ProductID: input.ProductID, OnHandQty: decimal.Zero, AvgCost: decimal.Zero}
		}

		next, entry, err := applyMovement(state, input.Type, input.Qty, input.UnitCost)
		if err != nil {
			if !errors.Is(err, ErrInsufficientStock) || !input.AllowBackorder {
				return err
			}
			next, entry = applyBackorderMovement(state, input.Type, input.Qty)
			// pending is the part of the movement the current stock cannot cover
			covered := decimal.Max(state.OnHandQty, decimal.Zero)
			backorder := Backorder{
				ID:         uuid.New(),
				ProductID:  input.ProductID,
				QtyPending: input.Qty.Sub(covered),
				Status:     BackorderWaitingStock,
			}
			if input.OrderItemID != nil {
				backorder.OrderItemID = *input.OrderItemID
			}
			if err := tx.InsertBackorder(ctx, backorder); err != nil {
				return err
			}
		}

		entry.ProductID = input.ProductID
		entry.Reference = input.Reference
		ledgerID, err := tx.InsertLedgerEntry(ctx, entry)
		if err != nil {
			return err
		}

		next.UpdatedAt = s.now()
		if err := tx.UpsertState(ctx, next); err != nil {
			return err
		}

		result = MovementResult{
			LedgerID:  ledgerID,
			OnHandQty: next.OnHandQty,
			AvgCost:   next.AvgCost,
			UnitCost:  entry.UnitCost,
			TotalCost: entry.TotalCost,
		}
		return nil
	})
	if err != nil {
		return MovementResult{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			Action:   fmt.Sprintf("inventory.%s", input.Type),
			Entity:   "inventory_movement",
			EntityID: fmt.Sprintf("%d", result.LedgerID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"qty":        input.Qty.String(),
				"total_cost": result.TotalCost.String(),
			},
			At: s.now(),
		})
	}
	return result, nil
}

// applyMovement computes the next cost state and the ledger row for a
// movement. Weighted-average on receipt; outbound at current average.
func applyMovement(state ProductCostState, movement MovementType, qty decimal.Decimal, unitCost *decimal.Decimal) (ProductCostState, CostLedgerEntry, error) {
	next := state
	var entry CostLedgerEntry
	if movement.Inbound() {
		cost := internalShared.RoundUnitCost(*unitCost)
		newQty := state.OnHandQty.Add(qty)
		if state.OnHandQty.Sign() <= 0 {
			next.AvgCost = cost
		} else {
			carried := state.OnHandQty.Mul(state.AvgCost)
			received := qty.Mul(cost)
			next.AvgCost = internalShared.RoundUnitCost(carried.Add(received).Div(newQty))
		}
		next.OnHandQty = newQty
		entry = CostLedgerEntry{
			Type:      movement,
			Qty:       qty,
			UnitCost:  cost,
			TotalCost: internalShared.RoundMoney(qty.Mul(cost)),
		}
		return next, entry, nil
	}

	newQty := state.OnHandQty.Sub(qty)
	if newQty.IsNegative() {
		return ProductCostState{}, CostLedgerEntry{}, fmt.Errorf("%w: product %d has %s on hand, movement needs %s",
			ErrInsufficientStock, state.ProductID, state.OnHandQty, qty)
	}
	next.OnHandQty = newQty
	entry = CostLedgerEntry{
		Type:      movement,
		Qty:       qty,
		UnitCost:  state.AvgCost,
		TotalCost: internalShared.RoundMoney(qty.Mul(state.AvgCost)),
	}
	return next, entry, nil
}

// applyBackorderMovement lets on-hand go negative for backorder-tolerant
// callers; cost basis stays at the current average.
func applyBackorderMovement(state ProductCostState, movement MovementType, qty decimal.Decimal) (ProductCostState, CostLedgerEntry) {
	next := state
	next.OnHandQty = state.OnHandQty.Sub(qty)
	entry := CostLedgerEntry{
		Type:      movement,
		Qty:       qty,
		UnitCost:  state.AvgCost,
		TotalCost: internalShared.RoundMoney(qty.Mul(state.AvgCost)),
	}
	return next, entry
}

// RebuildCostState replays the product's full ledger sequence and overwrites
// the cost state snapshot. Costing is deterministic, so a replay reproduces
// the live state exactly.
func (s *Service) RebuildCostState(ctx context.Context, productID int64) (ProductCostState, error) {
	if productID == 0 {
		return ProductCostState{}, errors.New("inventory: product required")
	}
	var rebuilt ProductCostState
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetStateForUpdate(ctx, productID); err != nil && !errors.Is(err, ErrStateNotFound) {
			return err
		}
		entries, err := tx.ListLedger(ctx, productID)
		if err != nil {
			return err
		}
		state := ProductCostState{ProductID: productID, OnHandQty: decimal.Zero, AvgCost: decimal.Zero}
		for _, e := range entries {
			if e.Type.Inbound() {
				cost := e.UnitCost
				next, _, err := applyMovement(state, e.Type, e.Qty, &cost)
				if err != nil {
					return err
				}
				state = next
			} else {
				state, _ = applyBackorderMovement(state, e.Type, e.Qty)
			}
		}
		state.UpdatedAt = s.now()
		if err := tx.UpsertState(ctx, state); err != nil {
			return err
		}
		rebuilt = state
		return nil
	})
	if err != nil {
		return ProductCostState{}, err
	}
	return rebuilt, nil
}

// ReleaseBackorders flips waiting backorders to ready while arriving stock
// covers them, oldest first. qty_pending only ever decreases.
func (s *Service) ReleaseBackorders(ctx context.Context, productID int64) ([]Backorder, error) {
	if productID == 0 {
		return nil, errors.New("inventory: product required")
	}
	var released []Backorder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		state, err := tx.GetStateForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		available := state.OnHandQty
		if !available.IsPositive() {
			return nil
		}
		waiting, err := tx.ListBackordersForUpdate(ctx, productID, BackorderWaitingStock)
		if err != nil {
			return err
		}
		for _, b := range waiting {
			if available.LessThan(b.QtyPending) {
				break
			}
			available = available.Sub(b.QtyPending)
			if err := tx.UpdateBackorder(ctx, b.ID, decimal.Zero, BackorderReady); err != nil {
				return err
			}
			b.QtyPending = decimal.Zero
			b.Status = BackorderReady
			released = append(released, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}
