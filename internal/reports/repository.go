package reports

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository aggregates the ledger store for the read-side reports. It never
// writes; every query is a projection over posted journals and payables.
type Repository interface {
	AccountBalances(ctx context.Context, year, month int) ([]AccountBalance, error)
	TaxAccountTotals(ctx context.Context, taxAccountID int64, year, month int) (debit, credit decimal.Decimal, err error)
	OpenInvoices(ctx context.Context) ([]OpenInvoice, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) AccountBalances(ctx context.Context, year, month int) ([]AccountBalance, error) {
	rows, err := r.db.Query(ctx, `
SELECT a.code, a.name, a.type,
       COALESCE(SUM(jl.debit), 0), COALESCE(SUM(jl.credit), 0)
FROM accounts a
JOIN journal_lines jl ON jl.account_id = a.id
JOIN journals j ON j.id = jl.journal_id
WHERE EXTRACT(YEAR FROM j.date) = $1 AND EXTRACT(MONTH FROM j.date) = $2
GROUP BY a.code, a.name, a.type
ORDER BY a.code`, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.Code, &b.Name, &b.Type, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) TaxAccountTotals(ctx context.Context, taxAccountID int64, year, month int) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.db.QueryRow(ctx, `
SELECT COALESCE(SUM(jl.debit), 0), COALESCE(SUM(jl.credit), 0)
FROM journal_lines jl
JOIN journals j ON j.id = jl.journal_id
WHERE jl.account_id = $1 AND EXTRACT(YEAR FROM j.date) = $2 AND EXTRACT(MONTH FROM j.date) = $3`,
		taxAccountID, year, month).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

func (r *repository) OpenInvoices(ctx context.Context) ([]OpenInvoice, error) {
	rows, err := r.db.Query(ctx, `
SELECT i.id, i.supplier_id, i.invoice_number,
       i.total - COALESCE(SUM(p.amount), 0), i.due_date
FROM supplier_invoices i
LEFT JOIN supplier_payments p ON p.supplier_invoice_id = i.id
WHERE i.status <> 'PAID'
GROUP BY i.id, i.supplier_id, i.invoice_number, i.total, i.due_date
HAVING i.total - COALESCE(SUM(p.amount), 0) > 0
ORDER BY i.due_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OpenInvoice
	for rows.Next() {
		var inv OpenInvoice
		if err := rows.Scan(&inv.InvoiceID, &inv.SupplierID, &inv.InvoiceNumber, &inv.Outstanding, &inv.DueDate); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
