package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"

	"github.com/meridian-moto/meridian-erp/internal/accounting/shared"
)

// AuditPort records period lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.List(ctx)
}

func (s *Service) Find(ctx context.Context, month, year int) (Period, error) {
	if err := validateMonthYear(month, year); err != nil {
		return Period{}, err
	}
	return s.repo.Find(ctx, month, year)
}

// Open creates a new open period row.
func (s *Service) Open(ctx context.Context, month, year int) (Period, error) {
	if err := validateMonthYear(month, year); err != nil {
		return Period{}, err
	}
	return s.repo.Create(ctx, month, year)
}

// Close flips a period to closed. The period row is locked first, so any
// posting transaction still holding the row blocks the close until it commits,
// and postings starting afterwards observe is_closed.
func (s *Service) Close(ctx context.Context, month, year int, closedBy int64) (Period, error) {
	if err := validateMonthYear(month, year); err != nil {
		return Period{}, err
	}
	var closed Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.FindForUpdate(ctx, month, year)
		if err != nil {
			return err
		}
		if period.IsClosed {
			return shared.ErrAlreadyClosed
		}
		now := s.now()
		if err := tx.MarkClosed(ctx, period.ID, closedBy, now); err != nil {
			return err
		}
		period.IsClosed = true
		period.ClosedAt = &now
		period.ClosedBy = &closedBy
		closed = period
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  closedBy,
			Action:   "period.close",
			Entity:   "accounting_period",
			EntityID: fmt.Sprintf("%d", closed.ID),
			Meta:     map[string]any{"month": month, "year": year},
			At:       s.now(),
		})
	}
	return closed, nil
}

func validateMonthYear(month, year int) error {
	if month < 1 || month > 12 {
		return errors.New("accounting: month must be 1-12")
	}
	if year < 2000 || year > 2200 {
		return errors.New("accounting: year out of range")
	}
	return nil
}
