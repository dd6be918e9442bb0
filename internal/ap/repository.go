package ap

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

type Repository interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (SupplierInvoice, error)
	ListInvoices(ctx context.Context, status InvoiceStatus) ([]SupplierInvoice, error)
	CreateInvoice(ctx context.Context, inv SupplierInvoice) (SupplierInvoice, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]SupplierPayment, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes payment writes inside a transaction. PostJournal runs
// the journal posting engine on the same transaction so invoice, payment, and
// ledger rows commit together.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (SupplierInvoice, error)
	SumPayments(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	InsertPayment(ctx context.Context, p SupplierPayment) error
	UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
	PostJournal(ctx context.Context, postedAt time.Time, in journals.PostingInput) (journals.Journal, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const invoiceColumns = `id, supplier_id, purchase_order_id, invoice_number, total, due_date, status, created_at, updated_at`

func scanInvoice(row pgx.Row) (SupplierInvoice, error) {
	var inv SupplierInvoice
	err := row.Scan(&inv.ID, &inv.SupplierID, &inv.PurchaseOrderID, &inv.InvoiceNumber, &inv.Total, &inv.DueDate, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplierInvoice{}, ErrInvoiceNotFound
		}
		return SupplierInvoice{}, err
	}
	return inv, nil
}

func (r *repository) GetInvoice(ctx context.Context, id uuid.UUID) (SupplierInvoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM supplier_invoices WHERE id=$1`, id))
}

func (r *repository) ListInvoices(ctx context.Context, status InvoiceStatus) ([]SupplierInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM supplier_invoices ORDER BY due_date`
	args := []any{}
	if status != "" {
		query = `SELECT ` + invoiceColumns + ` FROM supplier_invoices WHERE status=$1 ORDER BY due_date`
		args = append(args, status)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SupplierInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *repository) CreateInvoice(ctx context.Context, inv SupplierInvoice) (SupplierInvoice, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO supplier_invoices (id, supplier_id, purchase_order_id, invoice_number, total, due_date, status)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at, updated_at`,
		inv.ID, inv.SupplierID, inv.PurchaseOrderID, inv.InvoiceNumber, inv.Total, inv.DueDate, inv.Status).
		Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return SupplierInvoice{}, ErrDuplicateInvoiceNumber
		}
		return SupplierInvoice{}, err
	}
	return inv, nil
}

func (r *repository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]SupplierPayment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, supplier_invoice_id, amount, account_id, paid_at, created_by, created_at
FROM supplier_payments WHERE supplier_invoice_id=$1 ORDER BY paid_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SupplierPayment
	for rows.Next() {
		var p SupplierPayment
		if err := rows.Scan(&p.ID, &p.SupplierInvoiceID, &p.Amount, &p.AccountID, &p.PaidAt, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
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

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (SupplierInvoice, error) {
	return scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM supplier_invoices WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) SumPayments(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM supplier_payments WHERE supplier_invoice_id=$1`, invoiceID).Scan(&sum)
	return sum, err
}

func (r *txRepository) InsertPayment(ctx context.Context, p SupplierPayment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO supplier_payments (id, supplier_invoice_id, amount, account_id, paid_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6)`, p.ID, p.SupplierInvoiceID, p.Amount, p.AccountID, p.PaidAt, p.CreatedBy)
	return err
}

func (r *txRepository) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE supplier_invoices SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE supplier_invoices SET status=$1, updated_at=NOW() WHERE status=$2 AND due_date < $3`,
		StatusOverdue, StatusUnpaid, asOf)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) PostJournal(ctx context.Context, postedAt time.Time, in journals.PostingInput) (journals.Journal, error) {
	return journals.PostInTx(ctx, r.tx, postedAt, in)
}
