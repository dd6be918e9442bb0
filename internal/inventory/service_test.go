package inventory

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

type mockRepository struct {
	states     map[int64]ProductCostState
	ledger     map[int64][]CostLedgerEntry
	backorders map[uuid.UUID]Backorder
	nextLedger int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		states:     make(map[int64]ProductCostState),
		ledger:     make(map[int64][]CostLedgerEntry),
		backorders: make(map[uuid.UUID]Backorder),
		nextLedger: 1,
	}
}

func (m *mockRepository) GetState(ctx context.Context, productID int64) (ProductCostState, error) {
	state, ok := m.states[productID]
	if !ok {
		return ProductCostState{}, ErrStateNotFound
	}
	return state, nil
}

func (m *mockRepository) ListLedger(ctx context.Context, productID int64) ([]CostLedgerEntry, error) {
	return m.ledger[productID], nil
}

func (m *mockRepository) ListBackorders(ctx context.Context, productID int64, status BackorderStatus) ([]Backorder, error) {
	var out []Backorder
	for _, b := range m.backorders {
		if b.ProductID == productID && (status == "" || b.Status == status) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &mockTxRepository{mock: m, states: make(map[int64]ProductCostState)}
	for k, v := range m.states {
		tx.states[k] = v
	}
	tx.nextLedger = m.nextLedger
	if err := fn(ctx, tx); err != nil {
		return err
	}
	// Commit staged writes.
	for k, v := range tx.states {
		m.states[k] = v
	}
	for pid, entries := range tx.ledger {
		m.ledger[pid] = append(m.ledger[pid], entries...)
	}
	for id, b := range tx.backorders {
		m.backorders[id] = b
	}
	m.nextLedger = tx.nextLedger
	return nil
}

type mockTxRepository struct {
	mock       *mockRepository
	states     map[int64]ProductCostState
	ledger     map[int64][]CostLedgerEntry
	backorders map[uuid.UUID]Backorder
	nextLedger int64
}

func (t *mockTxRepository) GetStateForUpdate(ctx context.Context, productID int64) (ProductCostState, error) {
	state, ok := t.states[productID]
	if !ok {
		return ProductCostState{}, ErrStateNotFound
	}
	return state, nil
}

func (t *mockTxRepository) UpsertState(ctx context.Context, state ProductCostState) error {
	t.states[state.ProductID] = state
	return nil
}

func (t *mockTxRepository) InsertLedgerEntry(ctx context.Context, entry CostLedgerEntry) (int64, error) {
	if t.ledger == nil {
		t.ledger = make(map[int64][]CostLedgerEntry)
	}
	entry.ID = t.nextLedger
	t.nextLedger++
	t.ledger[entry.ProductID] = append(t.ledger[entry.ProductID], entry)
	return entry.ID, nil
}

func (t *mockTxRepository) InsertBackorder(ctx context.Context, b Backorder) error {
	if t.backorders == nil {
		t.backorders = make(map[uuid.UUID]Backorder)
	}
	t.backorders[b.ID] = b
	return nil
}

func (t *mockTxRepository) ListLedger(ctx context.Context, productID int64) ([]CostLedgerEntry, error) {
	return t.mock.ledger[productID], nil
}

func (t *mockTxRepository) ListBackordersForUpdate(ctx context.Context, productID int64, status BackorderStatus) ([]Backorder, error) {
	return t.mock.ListBackorders(ctx, productID, status)
}

func (t *mockTxRepository) UpdateBackorder(ctx context.Context, id uuid.UUID, qtyPending decimal.Decimal, status BackorderStatus) error {
	b, ok := t.mock.backorders[id]
	if !ok {
		return ErrBackorderNotFound
	}
	b.QtyPending = qtyPending
	b.Status = status
	if t.backorders == nil {
		t.backorders = make(map[uuid.UUID]Backorder)
	}
	t.backorders[id] = b
	return nil
}

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time {
		return time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	})
	return svc, repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func manualRef() internalShared.Reference {
	return internalShared.Reference{Kind: internalShared.RefManual, ID: uuid.New()}
}

func receive(t *testing.T, svc *Service, productID int64, qty, unitCost string) MovementResult {
	t.Helper()
	result, err := svc.RecordMovement(context.Background(), MovementInput{
		ProductID: productID,
		Type:      MovementIn,
		Qty:       dec(qty),
		UnitCost:  decp(unitCost),
		Reference: manualRef(),
	})
	require.NoError(t, err)
	return result
}

func TestMovingAverageOnReceipts(t *testing.T) {
	svc, _ := newTestService()

	first := receive(t, svc, 1, "10", "5000")
	assert.True(t, first.AvgCost.Equal(dec("5000")), "avg %s", first.AvgCost)
	assert.True(t, first.OnHandQty.Equal(dec("10")))

	second := receive(t, svc, 1, "10", "7000")
	assert.True(t, second.AvgCost.Equal(dec("6000")), "avg %s", second.AvgCost)
	assert.True(t, second.OnHandQty.Equal(dec("20")))
	assert.True(t, second.TotalCost.Equal(dec("70000")))
}

func TestOutboundUsesAverageCost(t *testing.T) {
	svc, _ := newTestService()
	receive(t, svc, 1, "10", "5000")
	receive(t, svc, 1, "10", "7000")

	result, err := svc.RecordMovement(context.Background(), MovementInput{
		ProductID: 1,
		Type:      MovementOut,
		Qty:       dec("5"),
		Reference: manualRef(),
	})
	require.NoError(t, err)
	assert.True(t, result.UnitCost.Equal(dec("6000")))
	assert.True(t, result.TotalCost.Equal(dec("30000")))
	assert.True(t, result.OnHandQty.Equal(dec("15")))
	// Outbound movements never shift the average.
	assert.True(t, result.AvgCost.Equal(dec("6000")))
}

func TestInsufficientStockLeavesStateUntouched(t *testing.T) {
	svc, repo := newTestService()
	receive(t, svc, 1, "20", "6000")

	_, err := svc.RecordMovement(context.Background(), MovementInput{
		ProductID: 1,
		Type:      MovementOut,
		Qty:       dec("25"),
		Reference: manualRef(),
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	state, err := repo.GetState(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, state.OnHandQty.Equal(dec("20")))
	assert.True(t, state.AvgCost.Equal(dec("6000")))
	entries, _ := repo.ListLedger(context.Background(), 1)
	assert.Len(t, entries, 1)
}

func TestBackorderAllowsNegativeOnHand(t *testing.T) {
	svc, repo := newTestService()
	receive(t, svc, 1, "20", "6000")

	orderItem := uuid.New()
	result, err := svc.RecordMovement(context.Background(), MovementInput{
		ProductID:      1,
		Type:           MovementOut,
		Qty:            dec("25"),
		Reference:      manualRef(),
		AllowBackorder: true,
		OrderItemID:    &orderItem,
	})
	require.NoError(t, err)
	assert.True(t, result.OnHandQty.Equal(dec("-5")))
	assert.True(t, result.TotalCost.Equal(dec("150000")))

	waiting, err := repo.ListBackorders(context.Background(), 1, BackorderWaitingStock)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.True(t, waiting[0].QtyPending.Equal(dec("5")))
	assert.Equal(t, orderItem, waiting[0].OrderItemID)
}

func TestReceiptResetsAverageAfterNegativeStock(t *testing.T) {
	svc, _ := newTestService()
	receive(t, svc, 1, "10", "5000")

	_, err := svc.RecordMovement(context.Background(), MovementInput{
		ProductID:      1,
		Type:           MovementOut,
		Qty:            dec("15"),
		Reference:      manualRef(),
		AllowBackorder: true,
	})
	require.NoError(t, err)

	// With on-hand at or below zero the next receipt defines the average.
	result := receive(t, svc, 1, "10", "8000")
	assert.True(t, result.AvgCost.Equal(dec("8000")), "avg %s", result.AvgCost)
	assert.True(t, result.OnHandQty.Equal(dec("5")))
}

func TestMovementValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: 1, Type: "TRANSFER", Qty: dec("1"), Reference: manualRef()})
	require.ErrorIs(t, err, ErrUnknownMovement)

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: 1, Type: MovementOut, Qty: dec("0"), Reference: manualRef()})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: 1, Type: MovementIn, Qty: dec("1"), Reference: manualRef()})
	require.ErrorIs(t, err, ErrUnitCostRequired)

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: 1, Type: MovementOut, Qty: dec("1"), UnitCost: decp("5"), Reference: manualRef()})
	require.ErrorIs(t, err, ErrUnitCostForbidden)

	_, err = svc.RecordMovement(ctx, MovementInput{ProductID: 1, Type: MovementOut, Qty: dec("1")})
	require.ErrorIs(t, err, internalShared.ErrInvalidReference)
}

func TestRebuildCostStateReplaysLedger(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	receive(t, svc, 1, "10", "5000")
	receive(t, svc, 1, "10", "7000")
	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: 1, Type: MovementOut, Qty: dec("5"), Reference: manualRef()})
	require.NoError(t, err)

	live, err := repo.GetState(ctx, 1)
	require.NoError(t, err)

	// Corrupt the snapshot, then rebuild from the ledger.
	repo.states[1] = ProductCostState{ProductID: 1, OnHandQty: dec("999"), AvgCost: dec("1")}

	rebuilt, err := svc.RebuildCostState(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rebuilt.OnHandQty.Equal(live.OnHandQty), "qty %s vs %s", rebuilt.OnHandQty, live.OnHandQty)
	assert.True(t, rebuilt.AvgCost.Equal(live.AvgCost), "avg %s vs %s", rebuilt.AvgCost, live.AvgCost)
}

func TestReleaseBackorders(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	receive(t, svc, 1, "5", "6000")
	_, err := svc.RecordMovement(ctx, MovementInput{ProductID: 1, Type: MovementOut, Qty: dec("8"), Reference: manualRef(), AllowBackorder: true})
	require.NoError(t, err)

	// Not enough stock yet: 3 pending, nothing on hand.
	released, err := svc.ReleaseBackorders(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, released)

	receive(t, svc, 1, "10", "6000")
	released, err = svc.ReleaseBackorders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, BackorderReady, released[0].Status)
	assert.True(t, released[0].QtyPending.IsZero())

	waiting, err := repo.ListBackorders(ctx, 1, BackorderWaitingStock)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}
