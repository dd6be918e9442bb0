package shared

import "errors"

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrMalformedLine indicates a line with both or neither side set, or a negative amount.
	ErrMalformedLine = errors.New("accounting: line must carry exactly one nonzero side")
	// ErrInvalidAccount indicates an unknown or inactive account on a line.
	ErrInvalidAccount = errors.New("accounting: account unknown or inactive")
	// ErrPeriodNotFound indicates no period row exists for the date or (month, year).
	ErrPeriodNotFound = errors.New("accounting: period not found")
	// ErrPeriodClosed indicates the target period no longer accepts postings.
	ErrPeriodClosed = errors.New("accounting: period closed")
	// ErrAlreadyClosed indicates a repeated close attempt.
	ErrAlreadyClosed = errors.New("accounting: period already closed")
	// ErrPeriodExists indicates a duplicate (month, year) row.
	ErrPeriodExists = errors.New("accounting: period already exists")
	// ErrImmutableJournal indicates an update or delete attempt on a posted journal.
	ErrImmutableJournal = errors.New("accounting: posted journals are immutable")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal not found")
	// ErrSourceAlreadyLinked indicates the source document already produced a journal.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrAccountNotFound indicates a missing chart-of-accounts row.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrDuplicateCode indicates an account code collision.
	ErrDuplicateCode = errors.New("accounting: account code already exists")
	// ErrAccountTypeLocked indicates a type change on an account referenced by posted lines.
	ErrAccountTypeLocked = errors.New("accounting: account type immutable once referenced")
	// ErrAccountCycle indicates the parent chain would loop.
	ErrAccountCycle = errors.New("accounting: account parent chain must be acyclic")
)
