package ap

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
	invoices map[uuid.UUID]SupplierInvoice
	payments map[uuid.UUID][]SupplierPayment
	journals []journals.PostingInput
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		invoices: make(map[uuid.UUID]SupplierInvoice),
		payments: make(map[uuid.UUID][]SupplierPayment),
	}
}

func (m *mockRepository) GetInvoice(ctx context.Context, id uuid.UUID) (SupplierInvoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return SupplierInvoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (m *mockRepository) ListInvoices(ctx context.Context, status InvoiceStatus) ([]SupplierInvoice, error) {
	var out []SupplierInvoice
	for _, inv := range m.invoices {
		if status == "" || inv.Status == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *mockRepository) CreateInvoice(ctx context.Context, inv SupplierInvoice) (SupplierInvoice, error) {
	for _, existing := range m.invoices {
		if existing.SupplierID == inv.SupplierID && existing.InvoiceNumber == inv.InvoiceNumber {
			return SupplierInvoice{}, ErrDuplicateInvoiceNumber
		}
	}
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *mockRepository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]SupplierPayment, error) {
	return m.payments[invoiceID], nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTxRepository{mock: m})
}

type mockTxRepository struct {
	mock *mockRepository
}

func (t *mockTxRepository) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (SupplierInvoice, error) {
	return t.mock.GetInvoice(ctx, id)
}

func (t *mockTxRepository) SumPayments(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range t.mock.payments[invoiceID] {
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (t *mockTxRepository) InsertPayment(ctx context.Context, p SupplierPayment) error {
	t.mock.payments[p.SupplierInvoiceID] = append(t.mock.payments[p.SupplierInvoiceID], p)
	return nil
}

func (t *mockTxRepository) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error {
	inv, ok := t.mock.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	t.mock.invoices[id] = inv
	return nil
}

func (t *mockTxRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var n int64
	for id, inv := range t.mock.invoices {
		if inv.Status == StatusUnpaid && inv.DueDate.Before(asOf) {
			inv.Status = StatusOverdue
			t.mock.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func (t *mockTxRepository) PostJournal(ctx context.Context, postedAt time.Time, in journals.PostingInput) (journals.Journal, error) {
	if err := in.Validate(); err != nil {
		return journals.Journal{}, err
	}
	t.mock.journals = append(t.mock.journals, in)
	return journals.Journal{ID: int64(len(t.mock.journals)), Date: in.Date, Reference: in.Reference, PostedAt: postedAt}, nil
}

func newTestService() (*Service, *mockRepository) {
	repo := newMockRepository()
	svc := NewService(repo, nil, LedgerAccounts{AccountsPayable: 2100})
	svc.WithNow(func() time.Time {
		return time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	})
	return svc, repo
}

func newInvoice(t *testing.T, svc *Service, total string, due time.Time) SupplierInvoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		SupplierID:    uuid.New(),
		InvoiceNumber: "INV-2026-001",
		Total:         decimal.RequireFromString(total),
		DueDate:       due,
	})
	require.NoError(t, err)
	return inv
}

func TestCreateInvoice(t *testing.T) {
	svc, _ := newTestService()

	due := time.Date(2026, time.April, 14, 0, 0, 0, 0, time.UTC)
	inv := newInvoice(t, svc, "1500.505", due)

	assert.Equal(t, StatusUnpaid, inv.Status)
	assert.True(t, inv.Total.Equal(decimal.RequireFromString("1500.51")), "total %s", inv.Total)
	assert.Equal(t, "INV-2026-001", inv.InvoiceNumber)
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	due := time.Date(2026, time.April, 14, 0, 0, 0, 0, time.UTC)

	_, err := svc.CreateInvoice(ctx, CreateInvoiceInput{InvoiceNumber: "X", Total: decimal.NewFromInt(1), DueDate: due})
	require.Error(t, err)

	_, err = svc.CreateInvoice(ctx, CreateInvoiceInput{SupplierID: uuid.New(), Total: decimal.NewFromInt(1), DueDate: due})
	require.Error(t, err)

	_, err = svc.CreateInvoice(ctx, CreateInvoiceInput{SupplierID: uuid.New(), InvoiceNumber: "X", Total: decimal.Zero, DueDate: due})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRecordPaymentPartialThenFull(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	due := time.Date(2026, time.April, 14, 0, 0, 0, 0, time.UTC)
	inv := newInvoice(t, svc, "1000", due)

	partial, _, err := svc.RecordPayment(ctx, RecordPaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.RequireFromString("400"),
		AccountID: 1100,
		CreatedBy: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusUnpaid, partial.Status)

	full, payment, err := svc.RecordPayment(ctx, RecordPaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.RequireFromString("600"),
		AccountID: 1100,
		CreatedBy: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, full.Status)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("600")))

	stored, err := repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, stored.Status)
}

func TestRecordPaymentJournalLines(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	due := time.Date(2026, time.April, 14, 0, 0, 0, 0, time.UTC)
	inv := newInvoice(t, svc, "1000", due)

	_, payment, err := svc.RecordPayment(ctx, RecordPaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.RequireFromString("250"),
		AccountID: 1100,
		CreatedBy: 7,
	})
	require.NoError(t, err)

	require.Len(t, repo.journals, 1)
	posted := repo.journals[0]
	assert.Equal(t, internalShared.RefSupplierPayment, posted.Reference.Kind)
	assert.Equal(t, payment.ID, posted.Reference.ID)
	require.Len(t, posted.Lines, 2)
	assert.Equal(t, int64(2100), posted.Lines[0].AccountID)
	assert.True(t, posted.Lines[0].Debit.Equal(decimal.RequireFromString("250")))
	assert.Equal(t, int64(1100), posted.Lines[1].AccountID)
	assert.True(t, posted.Lines[1].Credit.Equal(decimal.RequireFromString("250")))
}

func TestRecordPaymentOverpaymentRejected(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	due := time.Date(2026, time.April, 14, 0, 0, 0, 0, time.UTC)
	inv := newInvoice(t, svc, "1000", due)

	_, _, err := svc.RecordPayment(ctx, RecordPaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.RequireFromString("700"),
		AccountID: 1100,
	})
	require.NoError(t, err)

	_, _, err = svc.RecordPayment(ctx, RecordPaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.RequireFromString("301"),
		AccountID: 1100,
	})
	require.ErrorIs(t, err, ErrOverpayment)

	payments, err := repo.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Len(t, repo.journals, 1)
}

func TestRecordPaymentUnknownInvoice(t *testing.T) {
	svc, _ := newTestService()

	_, _, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID: uuid.New(),
		Amount:    decimal.NewFromInt(10),
		AccountID: 1100,
	})
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestMarkOverdue(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	past := newInvoice(t, svc, "100", time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))

	future, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
		SupplierID:    uuid.New(),
		InvoiceNumber: "INV-2026-002",
		Total:         decimal.NewFromInt(200),
		DueDate:       time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// Zero asOf falls back to the service clock (2026-03-15).
	flipped, err := svc.MarkOverdue(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), flipped)

	stored, _ := repo.GetInvoice(ctx, past.ID)
	assert.Equal(t, StatusOverdue, stored.Status)
	stored, _ = repo.GetInvoice(ctx, future.ID)
	assert.Equal(t, StatusUnpaid, stored.Status)
}

func TestOverduePaymentStillSettles(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	inv := newInvoice(t, svc, "100", time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.MarkOverdue(ctx, time.Time{})
	require.NoError(t, err)

	full, _, err := svc.RecordPayment(ctx, RecordPaymentInput{
		InvoiceID: inv.ID,
		Amount:    decimal.NewFromInt(100),
		AccountID: 1100,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, full.Status)

	stored, _ := repo.GetInvoice(ctx, inv.ID)
	assert.Equal(t, StatusPaid, stored.Status)
}
