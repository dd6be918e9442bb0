package ap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-moto/meridian-erp/internal/accounting/journals"
	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

// AuditPort records payable events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// LedgerAccounts names the chart-of-accounts rows the payable postings hit.
type LedgerAccounts struct {
	AccountsPayable int64
}

// Service manages supplier invoices and payments. Each recorded payment posts
// its ledger entry in the same transaction as the payment row.
type Service struct {
	repo     Repository
	audit    AuditPort
	accounts LedgerAccounts
	now      func() time.Time
}

func NewService(repo Repository, audit AuditPort, accounts LedgerAccounts) *Service {
	return &Service{repo: repo, audit: audit, accounts: accounts, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (SupplierInvoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, status InvoiceStatus) ([]SupplierInvoice, error) {
	return s.repo.ListInvoices(ctx, status)
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]SupplierPayment, error) {
	return s.repo.ListPayments(ctx, invoiceID)
}

func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (SupplierInvoice, error) {
	if in.SupplierID == uuid.Nil {
		return SupplierInvoice{}, errors.New("ap: supplier required")
	}
	if strings.TrimSpace(in.InvoiceNumber) == "" {
		return SupplierInvoice{}, errors.New("ap: invoice number required")
	}
	if !in.Total.IsPositive() {
		return SupplierInvoice{}, ErrInvalidAmount
	}
	if in.DueDate.IsZero() {
		return SupplierInvoice{}, errors.New("ap: due date required")
	}
	return s.repo.CreateInvoice(ctx, SupplierInvoice{
		ID:              uuid.New(),
		SupplierID:      in.SupplierID,
		PurchaseOrderID: in.PurchaseOrderID,
		InvoiceNumber:   strings.TrimSpace(in.InvoiceNumber),
		Total:           internalShared.RoundMoney(in.Total),
		DueDate:         in.DueDate,
		Status:          StatusUnpaid,
	})
}

// RecordPayment inserts a payment, re-derives the invoice status, and posts
// the ledger entry (debit accounts payable, credit the cash or bank account)
// atomically. Overpayment is rejected, never clamped.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (SupplierInvoice, SupplierPayment, error) {
	if !in.Amount.IsPositive() {
		return SupplierInvoice{}, SupplierPayment{}, ErrInvalidAmount
	}
	if in.AccountID == 0 {
		return SupplierInvoice{}, SupplierPayment{}, errors.New("ap: cash or bank account required")
	}
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	amount := internalShared.RoundMoney(in.Amount)
	payment := SupplierPayment{
		ID:                uuid.New(),
		SupplierInvoiceID: in.InvoiceID,
		Amount:            amount,
		AccountID:         in.AccountID,
		PaidAt:            paidAt,
		CreatedBy:         in.CreatedBy,
	}

	var invoice SupplierInvoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		paid, err := tx.SumPayments(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		if paid.Add(amount).GreaterThan(current.Total) {
			return fmt.Errorf("%w: invoice %s balance %s, payment %s",
				ErrOverpayment, current.ID, current.Total.Sub(paid), amount)
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		if paid.Add(amount).Equal(current.Total) {
			current.Status = StatusPaid
			if err := tx.UpdateInvoiceStatus(ctx, current.ID, StatusPaid); err != nil {
				return err
			}
		}
		if _, err := tx.PostJournal(ctx, s.now(), journals.PostingInput{
			Date:        paidAt,
			Reference:   internalShared.Reference{Kind: internalShared.RefSupplierPayment, ID: payment.ID},
			Description: fmt.Sprintf("Payment for supplier invoice %s", current.InvoiceNumber),
			CreatedBy:   in.CreatedBy,
			Lines: []journals.PostingLineInput{
				{AccountID: s.accounts.AccountsPayable, Debit: amount},
				{AccountID: in.AccountID, Credit: amount},
			},
		}); err != nil {
			return err
		}
		invoice = current
		return nil
	})
	if err != nil {
		return SupplierInvoice{}, SupplierPayment{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  in.CreatedBy,
			Action:   "ap.payment",
			Entity:   "supplier_payment",
			EntityID: payment.ID.String(),
			Meta: map[string]any{
				"invoice_id": in.InvoiceID.String(),
				"amount":     amount.String(),
				"status":     string(invoice.Status),
			},
			At: s.now(),
		})
	}
	return invoice, payment, nil
}

// MarkOverdue flips unpaid invoices past their due date. Run from the
// scheduler, not from the payment path.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	var flipped int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.MarkOverdue(ctx, asOf)
		if err != nil {
			return err
		}
		flipped = n
		return nil
	})
	return flipped, err
}
