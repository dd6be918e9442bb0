package creditnote

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-moto/meridian-erp/internal/accounting/journals"
	"github.com/meridian-moto/meridian-erp/internal/platform/db"
)

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (CreditNote, error)
	List(ctx context.Context, status Status) ([]CreditNote, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the write path inside a transaction. PostJournal runs
// the journal posting engine on the same transaction so the status flip and
// its ledger entry commit together.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (CreditNote, error)
	Insert(ctx context.Context, note CreditNote) (CreditNote, error)
	ReplaceDraft(ctx context.Context, note CreditNote) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetPosted(ctx context.Context, id uuid.UUID, at time.Time, by int64) error
	SetRefunded(ctx context.Context, id uuid.UUID, at time.Time, by int64) error
	PostJournal(ctx context.Context, postedAt time.Time, in journals.PostingInput) (journals.Journal, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const noteColumns = `id, invoice_id, amount, tax_amount, mode, status, reason, posted_at, posted_by, refunded_at, refunded_by, created_at, updated_at`

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanNote(row pgx.Row) (CreditNote, error) {
	var n CreditNote
	err := row.Scan(&n.ID, &n.InvoiceID, &n.Amount, &n.TaxAmount, &n.Mode, &n.Status, &n.Reason,
		&n.PostedAt, &n.PostedBy, &n.RefundedAt, &n.RefundedBy, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditNote{}, ErrNoteNotFound
		}
		return CreditNote{}, err
	}
	return n, nil
}

func loadLines(ctx context.Context, q queryer, noteID uuid.UUID) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, credit_note_id, description, qty, unit_price, line_total
FROM credit_note_lines WHERE credit_note_id=$1 ORDER BY created_at, id`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.CreditNoteID, &l.Description, &l.Qty, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func getNote(ctx context.Context, q queryer, id uuid.UUID, lock bool) (CreditNote, error) {
	query := `SELECT ` + noteColumns + ` FROM credit_notes WHERE id=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	note, err := scanNote(q.QueryRow(ctx, query, id))
	if err != nil {
		return CreditNote{}, err
	}
	note.Lines, err = loadLines(ctx, q, id)
	if err != nil {
		return CreditNote{}, err
	}
	return note, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (CreditNote, error) {
	return getNote(ctx, r.db, id, false)
}

func (r *repository) List(ctx context.Context, status Status) ([]CreditNote, error) {
	query := `SELECT ` + noteColumns + ` FROM credit_notes ORDER BY created_at DESC`
	args := []any{}
	if status != "" {
		query = `SELECT ` + noteColumns + ` FROM credit_notes WHERE status=$1 ORDER BY created_at DESC`
		args = append(args, status)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CreditNote
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
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

func (r *txRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (CreditNote, error) {
	return getNote(ctx, r.tx, id, true)
}

func (r *txRepository) Insert(ctx context.Context, note CreditNote) (CreditNote, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO credit_notes (id, invoice_id, amount, tax_amount, mode, status, reason)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at, updated_at`,
		note.ID, note.InvoiceID, note.Amount, note.TaxAmount, note.Mode, note.Status, note.Reason).
		Scan(&note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return CreditNote{}, err
	}
	if err := r.insertLines(ctx, note.ID, note.Lines); err != nil {
		return CreditNote{}, err
	}
	return note, nil
}

func (r *txRepository) insertLines(ctx context.Context, noteID uuid.UUID, lines []Line) error {
	for _, l := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO credit_note_lines (id, credit_note_id, description, qty, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5,$6)`, l.ID, noteID, l.Description, l.Qty, l.UnitPrice, l.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReplaceDraft rewrites the note head and swaps its lines. Callers hold the
// row lock and have already checked the draft status.
func (r *txRepository) ReplaceDraft(ctx context.Context, note CreditNote) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE credit_notes SET amount=$2, tax_amount=$3, mode=$4, reason=$5, updated_at=NOW()
WHERE id=$1 AND status=$6`, note.ID, note.Amount, note.TaxAmount, note.Mode, note.Reason, StatusDraft)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM credit_note_lines WHERE credit_note_id=$1`, note.ID); err != nil {
		return err
	}
	return r.insertLines(ctx, note.ID, note.Lines)
}

func (r *txRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM credit_note_lines WHERE credit_note_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM credit_notes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (r *txRepository) SetPosted(ctx context.Context, id uuid.UUID, at time.Time, by int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE credit_notes SET status=$2, posted_at=$3, posted_by=$4, updated_at=NOW() WHERE id=$1`,
		id, StatusPosted, at, by)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (r *txRepository) SetRefunded(ctx context.Context, id uuid.UUID, at time.Time, by int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE credit_notes SET status=$2, refunded_at=$3, refunded_by=$4, updated_at=NOW() WHERE id=$1`,
		id, StatusRefunded, at, by)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (r *txRepository) PostJournal(ctx context.Context, postedAt time.Time, in journals.PostingInput) (journals.Journal, error) {
	return journals.PostInTx(ctx, r.tx, postedAt, in)
}
