package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-moto/meridian-erp/internal/accounting/shared"
	"github.com/meridian-moto/meridian-erp/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context) ([]Period, error)
	Find(ctx context.Context, month, year int) (Period, error)
	Create(ctx context.Context, month, year int) (Period, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes period operations inside a transaction. The row lock
// taken by FindForUpdate serializes closing against in-flight postings.
type TxRepository interface {
	FindForUpdate(ctx context.Context, month, year int) (Period, error)
	MarkClosed(ctx context.Context, id int64, closedBy int64, closedAt time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const periodColumns = `id, month, year, is_closed, closed_at, closed_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Month, &p.Year, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods ORDER BY year DESC, month DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.Month, &p.Year, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Find(ctx context.Context, month, year int) (Period, error) {
	return scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE month=$1 AND year=$2`, month, year))
}

func (r *repository) Create(ctx context.Context, month, year int) (Period, error) {
	p, err := scanPeriod(r.db.QueryRow(ctx, `INSERT INTO accounting_periods (month, year) VALUES ($1,$2) RETURNING `+periodColumns, month, year))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Period{}, shared.ErrPeriodExists
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) FindForUpdate(ctx context.Context, month, year int) (Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE month=$1 AND year=$2 FOR UPDATE`, month, year))
}

func (r *txRepository) MarkClosed(ctx context.Context, id int64, closedBy int64, closedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_periods SET is_closed=TRUE, closed_at=$2, closed_by=$3, updated_at=NOW() WHERE id=$1`, id, closedAt, closedBy)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}
