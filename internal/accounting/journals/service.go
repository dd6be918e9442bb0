package journals

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-moto/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

// AuditPort records ledger events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service is the journal posting engine. Posting is immediate and the result
// immutable; the only correction path is a reversing journal.
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

func (s *Service) List(ctx context.Context, page, perPage int) ([]Journal, internalShared.Pagination, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, internalShared.Pagination{}, err
	}
	entries, err := s.repo.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, internalShared.Pagination{}, err
	}
	return entries, internalShared.NewPagination(page, perPage, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Journal, error) {
	return s.repo.Get(ctx, id)
}

// PostJournal validates and durably writes a balanced journal. posted_at is
// the creation instant; there is no draft stage.
func (s *Service) PostJournal(ctx context.Context, input PostingInput) (Journal, error) {
	if err := input.Validate(); err != nil {
		return Journal{}, err
	}
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		posted, err := tx.Post(ctx, s.now(), input)
		if err != nil {
			return err
		}
		journal = posted
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	s.record(ctx, input.CreatedBy, "journal.post", journal)
	return journal, nil
}

// UpdateJournal exists only to reject the call: posted journals never change.
func (s *Service) UpdateJournal(ctx context.Context, id int64) error {
	return fmt.Errorf("%w: journal %d", shared.ErrImmutableJournal, id)
}

// DeleteJournal exists only to reject the call: posted journals never vanish.
func (s *Service) DeleteJournal(ctx context.Context, id int64) error {
	return fmt.Errorf("%w: journal %d", shared.ErrImmutableJournal, id)
}

// reversalNamespace seeds deterministic reversal reference ids, one per
// original journal. A second reversal of the same journal maps to the same
// source link and fails with ErrSourceAlreadyLinked.
var reversalNamespace = uuid.MustParse("9f2c41aa-6b77-4d24-8a27-5e1a3c90f6b2")

func reversalReference(journalID int64) internalShared.Reference {
	return internalShared.Reference{
		Kind: internalShared.RefReversal,
		ID:   uuid.NewSHA1(reversalNamespace, []byte(strconv.FormatInt(journalID, 10))),
	}
}

// ReverseJournal posts a new journal with debit and credit sides swapped,
// referencing the original. The description always names the original
// journal id, and the reversal obeys normal period rules for its own date.
func (s *Service) ReverseJournal(ctx context.Context, input ReverseInput) (Journal, error) {
	if input.JournalID == 0 {
		return Journal{}, errors.New("accounting: journal id required")
	}
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	var reversal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.Get(ctx, input.JournalID)
		if err != nil {
			return err
		}
		description := fmt.Sprintf("Reversal of journal %d", original.ID)
		if input.Description != "" {
			description = fmt.Sprintf("%s (reversal of journal %d)", input.Description, original.ID)
		}
		posting := PostingInput{
			Date:        date,
			Reference:   reversalReference(original.ID),
			Description: description,
			CreatedBy:   input.ActorID,
			Lines:       reverseLines(original.Lines),
		}
		posted, err := tx.Post(ctx, s.now(), posting)
		if err != nil {
			return err
		}
		reversal = posted
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	s.record(ctx, input.ActorID, "journal.reverse", reversal)
	return reversal, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, journal Journal) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal",
		EntityID: fmt.Sprintf("%d", journal.ID),
		Meta: map[string]any{
			"reference": journal.Reference.String(),
			"date":      journal.Date.Format("2006-01-02"),
		},
		At: s.now(),
	})
}

func reverseLines(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
		})
	}
	return out
}
