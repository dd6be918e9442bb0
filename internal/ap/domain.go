package ap

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates supplier invoice statuses. OVERDUE is flipped by
// the scheduled sweep, never inside the payment path.
type InvoiceStatus string

const (
	StatusUnpaid  InvoiceStatus = "UNPAID"
	StatusPaid    InvoiceStatus = "PAID"
	StatusOverdue InvoiceStatus = "OVERDUE"
)

// SupplierInvoice models a payable owed to a supplier.
type SupplierInvoice struct {
	ID              uuid.UUID
	SupplierID      uuid.UUID
	PurchaseOrderID *uuid.UUID
	InvoiceNumber   string
	Total           decimal.Decimal
	DueDate         time.Time
	Status          InvoiceStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SupplierPayment models one payment against a supplier invoice.
type SupplierPayment struct {
	ID                uuid.UUID
	SupplierInvoiceID uuid.UUID
	Amount            decimal.Decimal
	AccountID         int64
	PaidAt            time.Time
	CreatedBy         int64
	CreatedAt         time.Time
}

// CreateInvoiceInput carries fields for a new supplier invoice.
type CreateInvoiceInput struct {
	SupplierID      uuid.UUID
	PurchaseOrderID *uuid.UUID
	InvoiceNumber   string
	Total           decimal.Decimal
	DueDate         time.Time
}

// RecordPaymentInput carries fields for recording a payment.
type RecordPaymentInput struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	AccountID int64
	PaidAt    time.Time
	CreatedBy int64
}

var (
	// ErrInvoiceNotFound indicates a missing supplier invoice.
	ErrInvoiceNotFound = errors.New("ap: supplier invoice not found")
	// ErrOverpayment indicates payments would exceed the invoice total.
	ErrOverpayment = errors.New("ap: payment exceeds remaining invoice balance")
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("ap: amount must be positive")
	// ErrDuplicateInvoiceNumber indicates an invoice number collision per supplier.
	ErrDuplicateInvoiceNumber = errors.New("ap: invoice number already exists for supplier")
)
