package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-moto/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

// PostingLineInput describes one journal line of a posting request.
type PostingLineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// PostingInput groups fields required to create a journal.
type PostingInput struct {
	Date        time.Time
	Reference   internalShared.Reference
	Description string
	CreatedBy   int64
	Lines       []PostingLineInput
}

// Validate enforces the structural posting rules: at least two lines, exactly
// one nonzero side per line, and exact decimal balance of debits and credits.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("accounting: journal date required")
	}
	if err := in.Reference.Validate(); err != nil {
		return err
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", shared.ErrMalformedLine, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", shared.ErrMalformedLine, idx)
		}
		debitSet := line.Debit.IsPositive()
		creditSet := line.Credit.IsPositive()
		if debitSet == creditSet {
			return fmt.Errorf("%w: line %d", shared.ErrMalformedLine, idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s vs credit %s", shared.ErrUnbalanced, debit, credit)
	}
	return nil
}

// ReverseInput wraps parameters for posting a reversal.
type ReverseInput struct {
	JournalID   int64
	ActorID     int64
	Date        time.Time
	Description string
}
