package journals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-moto/meridian-erp/internal/accounting/shared"
	"github.com/meridian-moto/meridian-erp/internal/platform/db"
	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

// Repository encapsulates DB operations for journals. The interface carries
// no update or delete: posted journals cannot be mutated through any path.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]Journal, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id int64) (Journal, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes posting operations within a transaction.
type TxRepository interface {
	Post(ctx context.Context, postedAt time.Time, in PostingInput) (Journal, error)
	Get(ctx context.Context, id int64) (Journal, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const journalColumns = `id, date, reference_kind, reference_id, description, created_by, posted_at, created_at`

func (r *repository) List(ctx context.Context, limit, offset int) ([]Journal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+journalColumns+` FROM journals ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journals`).Scan(&total)
	return total, err
}

func (r *repository) Get(ctx context.Context, id int64) (Journal, error) {
	return getJournal(ctx, r.db, id)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Post(ctx context.Context, postedAt time.Time, in PostingInput) (Journal, error) {
	return PostInTx(ctx, r.tx, postedAt, in)
}

func (r *txRepository) Get(ctx context.Context, id int64) (Journal, error) {
	return getJournal(ctx, r.tx, id)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getJournal(ctx context.Context, q queryer, id int64) (Journal, error) {
	j, err := scanJournal(q.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.ErrJournalNotFound
		}
		return Journal{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, journal_id, account_id, debit, credit FROM journal_lines WHERE journal_id=$1 ORDER BY id`, id)
	if err != nil {
		return Journal{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit); err != nil {
			return Journal{}, err
		}
		j.Lines = append(j.Lines, line)
	}
	return j, rows.Err()
}

func scanJournal(row pgx.Row) (Journal, error) {
	var j Journal
	var kind string
	err := row.Scan(&j.ID, &j.Date, &kind, &j.Reference.ID, &j.Description, &j.CreatedBy, &j.PostedAt, &j.CreatedAt)
	if err != nil {
		return Journal{}, err
	}
	j.Reference.Kind = internalShared.ReferenceKind(kind)
	return j, nil
}
