package creditnote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-moto/meridian-erp/internal/accounting/journals"
	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

// AuditPort records credit note events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// LedgerAccounts names the chart-of-accounts rows credit note postings hit.
// Cash is the default refund account when a caller does not name one.
type LedgerAccounts struct {
	SalesReturns       int64
	TaxPayable         int64
	AccountsReceivable int64
	Cash               int64
}

// Service manages the draft/posted/refunded lifecycle. Every status flip out
// of draft posts its ledger entry in the same transaction.
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

func (s *Service) Get(ctx context.Context, id uuid.UUID) (CreditNote, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, status Status) ([]CreditNote, error) {
	return s.repo.List(ctx, status)
}

func buildLines(noteID uuid.UUID, inputs []LineInput) []Line {
	lines := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, Line{
			ID:           uuid.New(),
			CreditNoteID: noteID,
			Description:  strings.TrimSpace(in.Description),
			Qty:          in.Qty,
			UnitPrice:    internalShared.RoundMoney(in.UnitPrice),
			LineTotal:    internalShared.RoundMoney(in.LineTotal),
		})
	}
	return lines
}

func validateAmounts(amount, tax decimal.Decimal, mode Mode, lines []LineInput) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if tax.IsNegative() {
		return fmt.Errorf("%w: tax_amount must not be negative", ErrInvalidAmount)
	}
	if len(lines) == 0 {
		return ErrNoLines
	}
	return nil
}

// CreateDraft stores a new draft. Line totals are not reconciled here; a
// draft may be saved half-built and is only checked when posted.
func (s *Service) CreateDraft(ctx context.Context, in CreateInput) (CreditNote, error) {
	if in.InvoiceID == uuid.Nil {
		return CreditNote{}, errors.New("creditnote: invoice required")
	}
	if err := validateAmounts(in.Amount, in.TaxAmount, in.Mode, in.Lines); err != nil {
		return CreditNote{}, err
	}
	note := CreditNote{
		ID:        uuid.New(),
		InvoiceID: in.InvoiceID,
		Amount:    internalShared.RoundMoney(in.Amount),
		TaxAmount: internalShared.RoundMoney(in.TaxAmount),
		Mode:      in.Mode,
		Status:    StatusDraft,
		Reason:    strings.TrimSpace(in.Reason),
	}
	note.Lines = buildLines(note.ID, in.Lines)

	var created CreditNote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Insert(ctx, note)
		return err
	})
	if err != nil {
		return CreditNote{}, err
	}
	return created, nil
}

// UpdateDraft replaces a draft's amounts and lines. Posted and refunded
// notes are immutable.
func (s *Service) UpdateDraft(ctx context.Context, id uuid.UUID, in UpdateInput) (CreditNote, error) {
	if err := validateAmounts(in.Amount, in.TaxAmount, in.Mode, in.Lines); err != nil {
		return CreditNote{}, err
	}
	var updated CreditNote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: credit note %s is %s", ErrImmutableNote, id, current.Status)
		}
		current.Amount = internalShared.RoundMoney(in.Amount)
		current.TaxAmount = internalShared.RoundMoney(in.TaxAmount)
		current.Mode = in.Mode
		current.Reason = strings.TrimSpace(in.Reason)
		current.Lines = buildLines(current.ID, in.Lines)
		if err := tx.ReplaceDraft(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return CreditNote{}, err
	}
	return updated, nil
}

// DeleteDraft removes a draft. Posted and refunded notes are immutable.
func (s *Service) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: credit note %s is %s", ErrImmutableNote, id, current.Status)
		}
		return tx.Delete(ctx, id)
	})
}

// Post reconciles line totals against the amount, flips the note to posted,
// and writes the ledger entry: debit sales returns (and tax payable for the
// tax portion), credit receivables or cash depending on the mode.
func (s *Service) Post(ctx context.Context, id uuid.UUID, postedBy int64) (CreditNote, error) {
	var note CreditNote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: credit note %s is %s", ErrAlreadyPosted, id, current.Status)
		}
		if !current.LineTotal().Equal(current.Amount) {
			return fmt.Errorf("%w: lines sum to %s, amount is %s",
				ErrLineMismatch, current.LineTotal(), current.Amount)
		}
		postedAt := s.now()
		if err := tx.SetPosted(ctx, id, postedAt, postedBy); err != nil {
			return err
		}

		creditAccount := s.accounts.AccountsReceivable
		if current.Mode == ModeCashRefund {
			creditAccount = s.accounts.Cash
		}
		lines := []journals.PostingLineInput{
			{AccountID: s.accounts.SalesReturns, Debit: current.Amount},
		}
		if current.TaxAmount.IsPositive() {
			lines = append(lines, journals.PostingLineInput{AccountID: s.accounts.TaxPayable, Debit: current.TaxAmount})
		}
		lines = append(lines, journals.PostingLineInput{AccountID: creditAccount, Credit: current.Gross()})
		if _, err := tx.PostJournal(ctx, postedAt, journals.PostingInput{
			Date:        postedAt,
			Reference:   internalShared.Reference{Kind: internalShared.RefCreditNote, ID: current.ID},
			Description: fmt.Sprintf("Credit note for invoice %s", current.InvoiceID),
			CreatedBy:   postedBy,
			Lines:       lines,
		}); err != nil {
			return err
		}

		current.Status = StatusPosted
		current.PostedAt = &postedAt
		current.PostedBy = &postedBy
		note = current
		return nil
	})
	if err != nil {
		return CreditNote{}, err
	}
	s.record(ctx, postedBy, "creditnote.post", note)
	return note, nil
}

// Refund transitions a posted note to refunded. Receivable-mode notes post
// the cash-out here (debit receivables, credit cash) since posting only
// reduced the customer's balance; cash-mode notes paid out at posting time
// and need no second entry.
func (s *Service) Refund(ctx context.Context, id uuid.UUID, refundedBy int64) (CreditNote, error) {
	var note CreditNote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusPosted {
			return fmt.Errorf("%w: credit note %s is %s", ErrNotPosted, id, current.Status)
		}
		refundedAt := s.now()
		if err := tx.SetRefunded(ctx, id, refundedAt, refundedBy); err != nil {
			return err
		}
		if current.Mode == ModeReceivable {
			if _, err := tx.PostJournal(ctx, refundedAt, journals.PostingInput{
				Date:        refundedAt,
				Reference:   internalShared.Reference{Kind: internalShared.RefCreditNoteRefund, ID: current.ID},
				Description: fmt.Sprintf("Cash refund of credit note %s", current.ID),
				CreatedBy:   refundedBy,
				Lines: []journals.PostingLineInput{
					{AccountID: s.accounts.AccountsReceivable, Debit: current.Gross()},
					{AccountID: s.accounts.Cash, Credit: current.Gross()},
				},
			}); err != nil {
				return err
			}
		}
		current.Status = StatusRefunded
		current.RefundedAt = &refundedAt
		current.RefundedBy = &refundedBy
		note = current
		return nil
	})
	if err != nil {
		return CreditNote{}, err
	}
	s.record(ctx, refundedBy, "creditnote.refund", note)
	return note, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, note CreditNote) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "credit_note",
		EntityID: note.ID.String(),
		Meta: map[string]any{
			"invoice_id": note.InvoiceID.String(),
			"amount":     note.Amount.String(),
			"mode":       string(note.Mode),
			"status":     string(note.Status),
		},
		At: s.now(),
	})
}
