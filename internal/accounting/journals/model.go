package journals

import (
	"time"

	"github.com/shopspring/decimal"

	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

// Journal captures one immutable accounting event. There is no draft state:
// a journal exists only once posted, and the type carries no mutators.
type Journal struct {
	ID          int64
	Date        time.Time
	Reference   internalShared.Reference
	Description string
	CreatedBy   int64
	PostedAt    time.Time
	CreatedAt   time.Time
	Lines       []JournalLine
}

// JournalLine stores the debit or credit amount for an account.
type JournalLine struct {
	ID        int64
	JournalID int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}
