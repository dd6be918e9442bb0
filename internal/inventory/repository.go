package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-moto/meridian-erp/internal/platform/db"
	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

type Repository interface {
	GetState(ctx context.Context, productID int64) (ProductCostState, error)
	ListLedger(ctx context.Context, productID int64) ([]CostLedgerEntry, error)
	ListBackorders(ctx context.Context, productID int64, status BackorderStatus) ([]Backorder, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes movement writes inside a transaction. GetStateForUpdate
// takes the row lock that serializes concurrent movements per product.
type TxRepository interface {
	GetStateForUpdate(ctx context.Context, productID int64) (ProductCostState, error)
	UpsertState(ctx context.Context, state ProductCostState) error
	InsertLedgerEntry(ctx context.Context, entry CostLedgerEntry) (int64, error)
	InsertBackorder(ctx context.Context, b Backorder) error
	ListLedger(ctx context.Context, productID int64) ([]CostLedgerEntry, error)
	ListBackordersForUpdate(ctx context.Context, productID int64, status BackorderStatus) ([]Backorder, error)
	UpdateBackorder(ctx context.Context, id uuid.UUID, qtyPending decimal.Decimal, status BackorderStatus) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetState(ctx context.Context, productID int64) (ProductCostState, error) {
	return scanState(r.db.QueryRow(ctx, `SELECT product_id, on_hand_qty, avg_cost, updated_at FROM product_cost_states WHERE product_id=$1`, productID))
}

func (r *repository) ListLedger(ctx context.Context, productID int64) ([]CostLedgerEntry, error) {
	return listLedger(ctx, r.db, productID)
}

func (r *repository) ListBackorders(ctx context.Context, productID int64, status BackorderStatus) ([]Backorder, error) {
	rows, err := r.db.Query(ctx, `SELECT id, order_item_id, product_id, qty_pending, status, created_at, updated_at
FROM backorders WHERE product_id=$1 AND status=$2 ORDER BY created_at`, productID, status)
	if err != nil {
		return nil, err
	}
	return collectBackorders(rows)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetStateForUpdate(ctx context.Context, productID int64) (ProductCostState, error) {
	return scanState(r.tx.QueryRow(ctx, `SELECT product_id, on_hand_qty, avg_cost, updated_at FROM product_cost_states WHERE product_id=$1 FOR UPDATE`, productID))
}

func (r *txRepository) UpsertState(ctx context.Context, state ProductCostState) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO product_cost_states (product_id, on_hand_qty, avg_cost, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (product_id) DO UPDATE SET on_hand_qty=EXCLUDED.on_hand_qty, avg_cost=EXCLUDED.avg_cost, updated_at=EXCLUDED.updated_at`,
		state.ProductID, state.OnHandQty, state.AvgCost, state.UpdatedAt)
	return err
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, entry CostLedgerEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_cost_ledger (product_id, movement_type, qty, unit_cost, total_cost, reference_kind, reference_id)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		entry.ProductID, string(entry.Type), entry.Qty, entry.UnitCost, entry.TotalCost, string(entry.Reference.Kind), entry.Reference.ID).Scan(&id)
	return id, err
}

func (r *txRepository) InsertBackorder(ctx context.Context, b Backorder) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO backorders (id, order_item_id, product_id, qty_pending, status)
VALUES ($1,$2,$3,$4,$5)`, b.ID, b.OrderItemID, b.ProductID, b.QtyPending, string(b.Status))
	return err
}

func (r *txRepository) ListLedger(ctx context.Context, productID int64) ([]CostLedgerEntry, error) {
	return listLedger(ctx, r.tx, productID)
}

func (r *txRepository) ListBackordersForUpdate(ctx context.Context, productID int64, status BackorderStatus) ([]Backorder, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, order_item_id, product_id, qty_pending, status, created_at, updated_at
FROM backorders WHERE product_id=$1 AND status=$2 ORDER BY created_at FOR UPDATE`, productID, status)
	if err != nil {
		return nil, err
	}
	return collectBackorders(rows)
}

func (r *txRepository) UpdateBackorder(ctx context.Context, id uuid.UUID, qtyPending decimal.Decimal, status BackorderStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE backorders SET qty_pending=$2, status=$3, updated_at=NOW() WHERE id=$1`, id, qtyPending, string(status))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBackorderNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listLedger(ctx context.Context, q queryer, productID int64) ([]CostLedgerEntry, error) {
	rows, err := q.Query(ctx, `SELECT id, product_id, movement_type, qty, unit_cost, total_cost, reference_kind, reference_id, created_at
FROM inventory_cost_ledger WHERE product_id=$1 ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CostLedgerEntry
	for rows.Next() {
		var e CostLedgerEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Type, &e.Qty, &e.UnitCost, &e.TotalCost, &kind, &e.Reference.ID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Reference.Kind = internalShared.ReferenceKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func collectBackorders(rows pgx.Rows) ([]Backorder, error) {
	defer rows.Close()
	var out []Backorder
	for rows.Next() {
		var b Backorder
		if err := rows.Scan(&b.ID, &b.OrderItemID, &b.ProductID, &b.QtyPending, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanState(row pgx.Row) (ProductCostState, error) {
	var s ProductCostState
	err := row.Scan(&s.ProductID, &s.OnHandQty, &s.AvgCost, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductCostState{}, ErrStateNotFound
		}
		return ProductCostState{}, err
	}
	return s, nil
}
