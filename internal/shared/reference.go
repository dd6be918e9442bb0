package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ReferenceKind enumerates the source documents a ledger row may point at.
type ReferenceKind string

const (
	RefOrder            ReferenceKind = "ORDER"
	RefSupplierInvoice  ReferenceKind = "SUPPLIER_INVOICE"
	RefSupplierPayment  ReferenceKind = "SUPPLIER_PAYMENT"
	RefCreditNote       ReferenceKind = "CREDIT_NOTE"
	RefCreditNoteRefund ReferenceKind = "CREDIT_NOTE_REFUND"
	RefCodSettlement    ReferenceKind = "COD_SETTLEMENT"
	RefManual           ReferenceKind = "MANUAL"
	RefReversal         ReferenceKind = "REVERSAL"
)

// ErrInvalidReference indicates an unknown reference kind or missing id.
var ErrInvalidReference = errors.New("shared: invalid document reference")

// Reference is a typed link from a ledger row to its source document.
type Reference struct {
	Kind ReferenceKind
	ID   uuid.UUID
}

// Validate rejects unknown kinds and nil ids.
func (r Reference) Validate() error {
	switch r.Kind {
	case RefOrder, RefSupplierInvoice, RefSupplierPayment, RefCreditNote, RefCreditNoteRefund, RefCodSettlement, RefManual, RefReversal:
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidReference, r.Kind)
	}
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: id required", ErrInvalidReference)
	}
	return nil
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}
