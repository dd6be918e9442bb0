package cod

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-moto/meridian-erp/internal/accounting/journals"
	"github.com/meridian-moto/meridian-erp/internal/platform/db"
)

// DriverBalance is the outstanding collected cash per driver.
type DriverBalance struct {
	DriverID uuid.UUID
	Total    decimal.Decimal
	Count    int64
}

type Repository interface {
	CreateCollection(ctx context.Context, c Collection) (Collection, error)
	ListCollections(ctx context.Context, driverID uuid.UUID, status CollectionStatus) ([]Collection, error)
	GetSettlement(ctx context.Context, id uuid.UUID) (Settlement, error)
	ListSettlements(ctx context.Context, driverID uuid.UUID) ([]Settlement, error)
	OutstandingByDriver(ctx context.Context) ([]DriverBalance, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the settlement write path inside a transaction.
// PostJournal runs the journal posting engine on the same transaction so the
// settlement batch and its ledger entry commit together.
type TxRepository interface {
	LockCollected(ctx context.Context, driverID uuid.UUID) ([]Collection, error)
	InsertSettlement(ctx context.Context, s Settlement) (Settlement, error)
	MarkSettled(ctx context.Context, driverID, settlementID uuid.UUID) (int64, error)
	PostJournal(ctx context.Context, postedAt time.Time, in journals.PostingInput) (journals.Journal, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const collectionColumns = `id, invoice_id, driver_id, settlement_id, amount, status, collected_at, created_at`

func scanCollections(rows pgx.Rows) ([]Collection, error) {
	defer rows.Close()
	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.InvoiceID, &c.DriverID, &c.SettlementID, &c.Amount, &c.Status, &c.CollectedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) CreateCollection(ctx context.Context, c Collection) (Collection, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO cod_collections (id, invoice_id, driver_id, amount, status, collected_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at`,
		c.ID, c.InvoiceID, c.DriverID, c.Amount, c.Status, c.CollectedAt).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Collection{}, ErrDuplicateCollection
		}
		return Collection{}, err
	}
	return c, nil
}

func (r *repository) ListCollections(ctx context.Context, driverID uuid.UUID, status CollectionStatus) ([]Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM cod_collections WHERE driver_id=$1`
	args := []any{driverID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY collected_at`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanCollections(rows)
}

const settlementColumns = `id, driver_id, total_amount, received_by, note, settled_at, created_at`

func scanSettlement(row pgx.Row) (Settlement, error) {
	var s Settlement
	err := row.Scan(&s.ID, &s.DriverID, &s.TotalAmount, &s.ReceivedBy, &s.Note, &s.SettledAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settlement{}, ErrSettlementNotFound
		}
		return Settlement{}, err
	}
	return s, nil
}

func (r *repository) GetSettlement(ctx context.Context, id uuid.UUID) (Settlement, error) {
	return scanSettlement(r.db.QueryRow(ctx, `SELECT `+settlementColumns+` FROM cod_settlements WHERE id=$1`, id))
}

func (r *repository) ListSettlements(ctx context.Context, driverID uuid.UUID) ([]Settlement, error) {
	rows, err := r.db.Query(ctx, `SELECT `+settlementColumns+` FROM cod_settlements WHERE driver_id=$1 ORDER BY settled_at DESC`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) OutstandingByDriver(ctx context.Context) ([]DriverBalance, error) {
	rows, err := r.db.Query(ctx, `SELECT driver_id, COALESCE(SUM(amount), 0), COUNT(*)
FROM cod_collections WHERE status=$1 GROUP BY driver_id ORDER BY driver_id`, StatusCollected)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DriverBalance
	for rows.Next() {
		var b DriverBalance
		if err := rows.Scan(&b.DriverID, &b.Total, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// LockCollected takes row locks on every eligible collection so a concurrent
// settlement of the same driver blocks rather than double-clearing.
func (r *txRepository) LockCollected(ctx context.Context, driverID uuid.UUID) ([]Collection, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+collectionColumns+` FROM cod_collections
WHERE driver_id=$1 AND status=$2 ORDER BY collected_at FOR UPDATE`, driverID, StatusCollected)
	if err != nil {
		return nil, err
	}
	return scanCollections(rows)
}

func (r *txRepository) InsertSettlement(ctx context.Context, s Settlement) (Settlement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO cod_settlements (id, driver_id, total_amount, received_by, note, settled_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at`,
		s.ID, s.DriverID, s.TotalAmount, s.ReceivedBy, s.Note, s.SettledAt).Scan(&s.CreatedAt)
	if err != nil {
		return Settlement{}, err
	}
	return s, nil
}

func (r *txRepository) MarkSettled(ctx context.Context, driverID, settlementID uuid.UUID) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE cod_collections SET settlement_id=$2, status=$3
WHERE driver_id=$1 AND status=$4`, driverID, settlementID, StatusSettled, StatusCollected)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) PostJournal(ctx context.Context, postedAt time.Time, in journals.PostingInput) (journals.Journal, error) {
	return journals.PostInTx(ctx, r.tx, postedAt, in)
}
