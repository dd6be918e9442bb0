package cod

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

// AuditPort records settlement events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// LedgerAccounts names the chart-of-accounts rows settlement postings hit.
// CodClearing carries the driver's liability until cash is handed in; Cash is
// the default receiving account when the caller does not name one.
type LedgerAccounts struct {
	CodClearing int64
	Cash        int64
}

// Service tracks per-driver collected cash and clears it in settlement
// batches. Each settlement posts its ledger entry in the same transaction.
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

func (s *Service) ListCollections(ctx context.Context, driverID uuid.UUID, status CollectionStatus) ([]Collection, error) {
	return s.repo.ListCollections(ctx, driverID, status)
}

func (s *Service) GetSettlement(ctx context.Context, id uuid.UUID) (Settlement, error) {
	return s.repo.GetSettlement(ctx, id)
}

func (s *Service) ListSettlements(ctx context.Context, driverID uuid.UUID) ([]Settlement, error) {
	return s.repo.ListSettlements(ctx, driverID)
}

func (s *Service) OutstandingByDriver(ctx context.Context) ([]DriverBalance, error) {
	return s.repo.OutstandingByDriver(ctx)
}

// RecordCollection inserts one collected cash row. No ledger entry moves
// here; the driver's debt only clears at settlement.
func (s *Service) RecordCollection(ctx context.Context, in RecordCollectionInput) (Collection, error) {
	if in.InvoiceID == uuid.Nil || in.DriverID == uuid.Nil {
		return Collection{}, errors.New("cod: invoice and driver required")
	}
	if !in.Amount.IsPositive() {
		return Collection{}, ErrInvalidAmount
	}
	collectedAt := in.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = s.now()
	}
	return s.repo.CreateCollection(ctx, Collection{
		ID:          uuid.New(),
		InvoiceID:   in.InvoiceID,
		DriverID:    in.DriverID,
		Amount:      internalShared.RoundMoney(in.Amount),
		Status:      StatusCollected,
		CollectedAt: collectedAt,
	})
}

// SettleDriver clears all of the driver's collected rows in one batch: sums
// them, writes a settlement whose total equals that sum, flips every row to
// settled, and posts the ledger entry (debit cash received, credit the COD
// clearing account) atomically.
func (s *Service) SettleDriver(ctx context.Context, in SettleDriverInput) (Settlement, error) {
	if in.DriverID == uuid.Nil {
		return Settlement{}, errors.New("cod: driver required")
	}
	cashAccount := in.AccountID
	if cashAccount == 0 {
		cashAccount = s.accounts.Cash
	}

	var settlement Settlement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		collected, err := tx.LockCollected(ctx, in.DriverID)
		if err != nil {
			return err
		}
		if len(collected) == 0 {
			return fmt.Errorf("%w: driver %s", ErrNothingToSettle, in.DriverID)
		}
		total := decimal.Zero
		for _, c := range collected {
			total = total.Add(c.Amount)
		}
		settledAt := s.now()
		settlement, err = tx.InsertSettlement(ctx, Settlement{
			ID:          uuid.New(),
			DriverID:    in.DriverID,
			TotalAmount: total,
			ReceivedBy:  in.ReceivedBy,
			Note:        strings.TrimSpace(in.Note),
			SettledAt:   settledAt,
		})
		if err != nil {
			return err
		}
		marked, err := tx.MarkSettled(ctx, in.DriverID, settlement.ID)
		if err != nil {
			return err
		}
		if marked != int64(len(collected)) {
			return fmt.Errorf("cod: settled %d rows, locked %d", marked, len(collected))
		}
		_, err = tx.PostJournal(ctx, settledAt, journals.PostingInput{
			Date:        settledAt,
			Reference:   internalShared.Reference{Kind: internalShared.RefCodSettlement, ID: settlement.ID},
			Description: fmt.Sprintf("COD settlement for driver %s", in.DriverID),
			CreatedBy:   in.ReceivedBy,
			Lines: []journals.PostingLineInput{
				{AccountID: cashAccount, Debit: total},
				{AccountID: s.accounts.CodClearing, Credit: total},
			},
		})
		return err
	})
	if err != nil {
		return Settlement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  in.ReceivedBy,
			Action:   "cod.settle",
			Entity:   "cod_settlement",
			EntityID: settlement.ID.String(),
			Meta: map[string]any{
				"driver_id": in.DriverID.String(),
				"total":     settlement.TotalAmount.String(),
			},
			At: s.now(),
		})
	}
	return settlement, nil
}
