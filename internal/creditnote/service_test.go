package creditnote

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-moto/meridian-erp/internal/accounting/journals"
	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

type mockRepository struct {
	notes    map[uuid.UUID]CreditNote
	journals []journals.PostingInput
}

func newMockRepository() *mockRepository {
	return &mockRepository{notes: make(map[uuid.UUID]CreditNote)}
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (CreditNote, error) {
	note, ok := m.notes[id]
	if !ok {
		return CreditNote{}, ErrNoteNotFound
	}
	return note, nil
}

func (m *mockRepository) List(ctx context.Context, status Status) ([]CreditNote, error) {
	var out []CreditNote
	for _, note := range m.notes {
		if status == "" || note.Status == status {
			out = append(out, note)
		}
	}
	return out, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTxRepository{mock: m})
}

type mockTxRepository struct {
	mock *mockRepository
}

func (t *mockTxRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (CreditNote, error) {
	return t.mock.Get(ctx, id)
}

func (t *mockTxRepository) Insert(ctx context.Context, note CreditNote) (CreditNote, error) {
	t.mock.notes[note.ID] = note
	return note, nil
}

func (t *mockTxRepository) ReplaceDraft(ctx context.Context, note CreditNote) error {
	current, ok := t.mock.notes[note.ID]
	if !ok || current.Status != StatusDraft {
		return ErrNoteNotFound
	}
	t.mock.notes[note.ID] = note
	return nil
}

func (t *mockTxRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.mock.notes[id]; !ok {
		return ErrNoteNotFound
	}
	delete(t.mock.notes, id)
	return nil
}

func (t *mockTxRepository) SetPosted(ctx context.Context, id uuid.UUID, at time.Time, by int64) error {
	note, ok := t.mock.notes[id]
	if !ok {
		return ErrNoteNotFound
	}
	note.Status = StatusPosted
	note.PostedAt = &at
	note.PostedBy = &by
	t.mock.notes[id] = note
	return nil
}

func (t *mockTxRepository) SetRefunded(ctx context.Context, id uuid.UUID, at time.Time, by int64) error {
	note, ok := t.mock.notes[id]
	if !ok {
		return ErrNoteNotFound
	}
	note.Status = StatusRefunded
	note.RefundedAt = &at
	note.RefundedBy = &by
	t.mock.notes[id] = note
	return nil
}

func (t *mockTxRepository) PostJournal(ctx context.Context, postedAt time.Time, in journals.PostingInput) (journals.Journal, error) {
	if err := in.Validate(); err != nil {
		return journals.Journal{}, err
	}
	t.mock.journals = append(t.mock.journals, in)
	return journals.Journal{ID: int64(len(t.mock.journals)), Reference: in.Reference, PostedAt: postedAt}, nil
}

var testAccounts = LedgerAccounts{
	SalesReturns:       4900,
	TaxPayable:         2300,
	AccountsReceivable: 1200,
	Cash:               1000,
}

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	svc := NewService(repo, nil, testAccounts)
	svc.WithNow(func() time.Time {
		return time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	})
	return svc, repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func draftInput(mode Mode) CreateInput {
	return CreateInput{
		InvoiceID: uuid.New(),
		Amount:    dec("500"),
		TaxAmount: dec("55"),
		Mode:      mode,
		Reason:    "damaged exhaust pipe",
		Lines: []LineInput{
			{Description: "Exhaust pipe", Qty: dec("1"), UnitPrice: dec("500"), LineTotal: dec("500")},
		},
	}
}

func TestCreateDraft(t *testing.T) {
	svc, _ := newTestService()

	note, err := svc.CreateDraft(context.Background(), draftInput(ModeReceivable))
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, note.Status)
	assert.True(t, note.Gross().Equal(dec("555")))
	require.Len(t, note.Lines, 1)
	assert.Equal(t, note.ID, note.Lines[0].CreditNoteID)
}

func TestCreateDraftValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	in := draftInput(ModeReceivable)
	in.Mode = "STORE_CREDIT"
	_, err := svc.CreateDraft(ctx, in)
	require.ErrorIs(t, err, ErrInvalidMode)

	in = draftInput(ModeReceivable)
	in.Amount = decimal.Zero
	_, err = svc.CreateDraft(ctx, in)
	require.ErrorIs(t, err, ErrInvalidAmount)

	in = draftInput(ModeReceivable)
	in.Lines = nil
	_, err = svc.CreateDraft(ctx, in)
	require.ErrorIs(t, err, ErrNoLines)
}

func TestDraftMayBeUnreconciled(t *testing.T) {
	svc, _ := newTestService()

	in := draftInput(ModeReceivable)
	in.Lines[0].LineTotal = dec("120")
	_, err := svc.CreateDraft(context.Background(), in)
	require.NoError(t, err)
}

func TestUpdateDraft(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	note, err := svc.CreateDraft(ctx, draftInput(ModeReceivable))
	require.NoError(t, err)

	updated, err := svc.UpdateDraft(ctx, note.ID, UpdateInput{
		Amount:    dec("300"),
		TaxAmount: dec("33"),
		Mode:      ModeCashRefund,
		Reason:    "partial return",
		Lines: []LineInput{
			{Description: "Brake lever", Qty: dec("2"), UnitPrice: dec("150"), LineTotal: dec("300")},
		},
	})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(dec("300")))
	assert.Equal(t, ModeCashRefund, updated.Mode)
}

func TestPostReconcilesLines(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	in := draftInput(ModeReceivable)
	in.Lines[0].LineTotal = dec("450")
	note, err := svc.CreateDraft(ctx, in)
	require.NoError(t, err)

	_, err = svc.Post(ctx, note.ID, 7)
	require.ErrorIs(t, err, ErrLineMismatch)
}

func TestPostReceivableMode(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	note, err := svc.CreateDraft(ctx, draftInput(ModeReceivable))
	require.NoError(t, err)

	posted, err := svc.Post(ctx, note.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.PostedBy)
	assert.Equal(t, int64(7), *posted.PostedBy)

	require.Len(t, repo.journals, 1)
	entry := repo.journals[0]
	assert.Equal(t, internalShared.RefCreditNote, entry.Reference.Kind)
	require.Len(t, entry.Lines, 3)
	assert.Equal(t, int64(4900), entry.Lines[0].AccountID)
	assert.True(t, entry.Lines[0].Debit.Equal(dec("500")))
	assert.Equal(t, int64(2300), entry.Lines[1].AccountID)
	assert.True(t, entry.Lines[1].Debit.Equal(dec("55")))
	assert.Equal(t, int64(1200), entry.Lines[2].AccountID)
	assert.True(t, entry.Lines[2].Credit.Equal(dec("555")))
}

func TestPostCashRefundMode(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	note, err := svc.CreateDraft(ctx, draftInput(ModeCashRefund))
	require.NoError(t, err)

	_, err = svc.Post(ctx, note.ID, 7)
	require.NoError(t, err)

	require.Len(t, repo.journals, 1)
	entry := repo.journals[0]
	// Cash-mode notes credit cash directly.
	assert.Equal(t, int64(1000), entry.Lines[2].AccountID)
	assert.True(t, entry.Lines[2].Credit.Equal(dec("555")))
}

func TestPostTwiceRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	note, err := svc.CreateDraft(ctx, draftInput(ModeReceivable))
	require.NoError(t, err)
	_, err = svc.Post(ctx, note.ID, 7)
	require.NoError(t, err)

	_, err = svc.Post(ctx, note.ID, 7)
	require.ErrorIs(t, err, ErrAlreadyPosted)
}

func TestUpdatePostedRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	note, err := svc.CreateDraft(ctx, draftInput(ModeReceivable))
	require.NoError(t, err)
	_, err = svc.Post(ctx, note.ID, 7)
	require.NoError(t, err)

	_, err = svc.UpdateDraft(ctx, note.ID, UpdateInput{
		Amount: dec("100"), TaxAmount: dec("0"), Mode: ModeReceivable,
		Lines: []LineInput{{Description: "x", Qty: dec("1"), UnitPrice: dec("100"), LineTotal: dec("100")}},
	})
	require.ErrorIs(t, err, ErrImmutableNote)

	err = svc.DeleteDraft(ctx, note.ID)
	require.ErrorIs(t, err, ErrImmutableNote)
}

func TestDeleteDraft(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	note, err := svc.CreateDraft(ctx, draftInput(ModeReceivable))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDraft(ctx, note.ID))
	_, err = repo.Get(ctx, note.ID)
	require.ErrorIs(t, err, ErrNoteNotFound)
}

func TestRefundReceivablePostsCashOut(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	note, err := svc.CreateDraft(ctx, draftInput(ModeReceivable))
	require.NoError(t, err)
	_, err = svc.Post(ctx, note.ID, 7)
	require.NoError(t, err)

	refunded, err := svc.Refund(ctx, note.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)

	require.Len(t, repo.journals, 2)
	entry := repo.journals[1]
	assert.Equal(t, internalShared.RefCreditNoteRefund, entry.Reference.Kind)
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, int64(1200), entry.Lines[0].AccountID)
	assert.True(t, entry.Lines[0].Debit.Equal(dec("555")))
	assert.Equal(t, int64(1000), entry.Lines[1].AccountID)
	assert.True(t, entry.Lines[1].Credit.Equal(dec("555")))
}

func TestRefundCashModeSkipsSecondEntry(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	note, err := svc.CreateDraft(ctx, draftInput(ModeCashRefund))
	require.NoError(t, err)
	_, err = svc.Post(ctx, note.ID, 7)
	require.NoError(t, err)

	refunded, err := svc.Refund(ctx, note.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)
	assert.Len(t, repo.journals, 1)
}

func TestRefundRequiresPostedStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	note, err := svc.CreateDraft(ctx, draftInput(ModeReceivable))
	require.NoError(t, err)

	_, err = svc.Refund(ctx, note.ID, 9)
	require.ErrorIs(t, err, ErrNotPosted)

	_, err = svc.Post(ctx, note.ID, 7)
	require.NoError(t, err)
	_, err = svc.Refund(ctx, note.ID, 9)
	require.NoError(t, err)

	_, err = svc.Refund(ctx, note.ID, 9)
	require.ErrorIs(t, err, ErrNotPosted)
}
