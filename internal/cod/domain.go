package cod

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollectionStatus tracks a collected cash row through settlement.
type CollectionStatus string

const (
	StatusCollected CollectionStatus = "COLLECTED"
	StatusSettled   CollectionStatus = "SETTLED"
)

// Collection is cash a driver collected for one invoice. SettlementID stays
// nil until a settlement batch clears the row.
type Collection struct {
	ID           uuid.UUID
	InvoiceID    uuid.UUID
	DriverID     uuid.UUID
	SettlementID *uuid.UUID
	Amount       decimal.Decimal
	Status       CollectionStatus
	CollectedAt  time.Time
	CreatedAt    time.Time
}

// Settlement clears all of a driver's collected cash in one batch. Its total
// always equals the sum of the collection rows it settles.
type Settlement struct {
	ID          uuid.UUID
	DriverID    uuid.UUID
	TotalAmount decimal.Decimal
	ReceivedBy  int64
	Note        string
	SettledAt   time.Time
	CreatedAt   time.Time
}

// RecordCollectionInput carries fields for one collected cash event.
type RecordCollectionInput struct {
	InvoiceID   uuid.UUID
	DriverID    uuid.UUID
	Amount      decimal.Decimal
	CollectedAt time.Time
}

// SettleDriverInput carries fields for a settlement batch.
type SettleDriverInput struct {
	DriverID   uuid.UUID
	ReceivedBy int64
	Note       string
	AccountID  int64
}

var (
	// ErrNothingToSettle indicates the driver has no collected rows.
	ErrNothingToSettle = errors.New("cod: no collected cash to settle for driver")
	// ErrCollectionNotFound indicates a missing collection row.
	ErrCollectionNotFound = errors.New("cod: collection not found")
	// ErrSettlementNotFound indicates a missing settlement.
	ErrSettlementNotFound = errors.New("cod: settlement not found")
	// ErrInvalidAmount indicates a non-positive collection amount.
	ErrInvalidAmount = errors.New("cod: amount must be positive")
	// ErrDuplicateCollection indicates the invoice already has a collection row.
	ErrDuplicateCollection = errors.New("cod: invoice already collected")
)
