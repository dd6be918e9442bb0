package journals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meridian-moto/meridian-erp/internal/accounting/shared"
)

// PostInTx validates and writes one journal with its lines on the supplied
// transaction. Modules that must post ledger entries atomically with their own
// writes (payments, credit notes, COD settlements) delegate here so the
// journal, its source link, and the caller's rows commit or roll back
// together.
//
// The accounting period covering the journal date is locked before the
// open-check, so a concurrent period close blocks until this posting commits
// and postings started after a close observe is_closed.
func PostInTx(ctx context.Context, tx pgx.Tx, postedAt time.Time, in PostingInput) (Journal, error) {
	if err := in.Validate(); err != nil {
		return Journal{}, err
	}

	var closed bool
	err := tx.QueryRow(ctx, `SELECT is_closed FROM accounting_periods WHERE month=$1 AND year=$2 FOR UPDATE`,
		int(in.Date.Month()), in.Date.Year()).Scan(&closed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.ErrPeriodNotFound
		}
		return Journal{}, err
	}
	if closed {
		return Journal{}, shared.ErrPeriodClosed
	}

	ids := make([]int64, 0, len(in.Lines))
	for _, line := range in.Lines {
		ids = append(ids, line.AccountID)
	}
	var active int
	if err := tx.QueryRow(ctx, `SELECT COUNT(DISTINCT id) FROM accounts WHERE id = ANY($1) AND is_active`, ids).Scan(&active); err != nil {
		return Journal{}, err
	}
	if active != distinct(ids) {
		return Journal{}, shared.ErrInvalidAccount
	}

	journal := Journal{
		Date:        in.Date,
		Reference:   in.Reference,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
		PostedAt:    postedAt,
	}
	err = tx.QueryRow(ctx, `INSERT INTO journals (date, reference_kind, reference_id, description, created_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
		in.Date, string(in.Reference.Kind), in.Reference.ID, in.Description, in.CreatedBy, postedAt).
		Scan(&journal.ID, &journal.CreatedAt)
	if err != nil {
		return Journal{}, err
	}

	for _, line := range in.Lines {
		var lineID int64
		err := tx.QueryRow(ctx, `INSERT INTO journal_lines (journal_id, account_id, debit, credit)
VALUES ($1,$2,$3,$4) RETURNING id`, journal.ID, line.AccountID, line.Debit, line.Credit).Scan(&lineID)
		if err != nil {
			return Journal{}, err
		}
		journal.Lines = append(journal.Lines, JournalLine{
			ID:        lineID,
			JournalID: journal.ID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}

	if _, err := tx.Exec(ctx, `INSERT INTO journal_source_links (reference_kind, reference_id, journal_id)
VALUES ($1,$2,$3)`, string(in.Reference.Kind), in.Reference.ID, journal.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Journal{}, shared.ErrSourceAlreadyLinked
		}
		return Journal{}, err
	}

	return journal, nil
}

func distinct(ids []int64) int {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
