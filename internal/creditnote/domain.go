package creditnote

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mode selects how a posted credit note settles: against the customer's
// receivable balance or as an immediate cash refund.
type Mode string

const (
	ModeReceivable Mode = "RECEIVABLE"
	ModeCashRefund Mode = "CASH_REFUND"
)

func (m Mode) IsValid() bool {
	return m == ModeReceivable || m == ModeCashRefund
}

// Status follows the linear draft/posted/refunded lifecycle. Drafts are
// freely editable; posted and refunded notes are immutable.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusRefunded Status = "REFUNDED"
)

// CreditNote adjusts a customer invoice downward.
type CreditNote struct {
	ID         uuid.UUID
	InvoiceID  uuid.UUID
	Amount     decimal.Decimal
	TaxAmount  decimal.Decimal
	Mode       Mode
	Status     Status
	Reason     string
	PostedAt   *time.Time
	PostedBy   *int64
	RefundedAt *time.Time
	RefundedBy *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Lines      []Line
}

// Gross is the full value the posting moves, amount plus tax.
func (n CreditNote) Gross() decimal.Decimal {
	return n.Amount.Add(n.TaxAmount)
}

// LineTotal sums the note's line totals.
func (n CreditNote) LineTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range n.Lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum
}

// Line details one credited invoice line.
type Line struct {
	ID           uuid.UUID
	CreditNoteID uuid.UUID
	Description  string
	Qty          decimal.Decimal
	UnitPrice    decimal.Decimal
	LineTotal    decimal.Decimal
}

// LineInput carries fields for one credit note line.
type LineInput struct {
	Description string
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// CreateInput carries fields for a new draft credit note.
type CreateInput struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	TaxAmount decimal.Decimal
	Mode      Mode
	Reason    string
	Lines     []LineInput
}

// UpdateInput replaces a draft's amounts and lines wholesale.
type UpdateInput struct {
	Amount    decimal.Decimal
	TaxAmount decimal.Decimal
	Mode      Mode
	Reason    string
	Lines     []LineInput
}

var (
	// ErrNoteNotFound indicates a missing credit note.
	ErrNoteNotFound = errors.New("creditnote: credit note not found")
	// ErrAlreadyPosted indicates a post attempt on a non-draft note.
	ErrAlreadyPosted = errors.New("creditnote: credit note already posted")
	// ErrNotPosted indicates a refund attempt on a note that is not posted.
	ErrNotPosted = errors.New("creditnote: credit note is not posted")
	// ErrLineMismatch indicates line totals do not reconcile with the amount.
	ErrLineMismatch = errors.New("creditnote: line totals do not match amount")
	// ErrImmutableNote indicates an edit or delete on a posted or refunded note.
	ErrImmutableNote = errors.New("creditnote: posted credit notes cannot be changed")
	// ErrInvalidMode indicates an unknown settlement mode.
	ErrInvalidMode = errors.New("creditnote: invalid mode")
	// ErrInvalidAmount indicates a non-positive amount or negative tax.
	ErrInvalidAmount = errors.New("creditnote: invalid amount")
	// ErrNoLines indicates a note without lines.
	ErrNoLines = errors.New("creditnote: at least one line required")
)
