package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-moto/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

type mockRepository struct {
	periods map[[2]int]*Period
	nextID  int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{periods: make(map[[2]int]*Period), nextID: 1}
}

func (m *mockRepository) List(ctx context.Context) ([]Period, error) {
	out := make([]Period, 0, len(m.periods))
	for _, p := range m.periods {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockRepository) Find(ctx context.Context, month, year int) (Period, error) {
	p, ok := m.periods[[2]int{month, year}]
	if !ok {
		return Period{}, shared.ErrPeriodNotFound
	}
	return *p, nil
}

func (m *mockRepository) Create(ctx context.Context, month, year int) (Period, error) {
	key := [2]int{month, year}
	if _, ok := m.periods[key]; ok {
		return Period{}, shared.ErrPeriodExists
	}
	p := &Period{ID: m.nextID, Month: month, Year: year}
	m.nextID++
	m.periods[key] = p
	return *p, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTxRepository{mock: m})
}

type mockTxRepository struct {
	mock *mockRepository
}

func (t *mockTxRepository) FindForUpdate(ctx context.Context, month, year int) (Period, error) {
	return t.mock.Find(ctx, month, year)
}

func (t *mockTxRepository) MarkClosed(ctx context.Context, id int64, closedBy int64, closedAt time.Time) error {
	for _, p := range t.mock.periods {
		if p.ID == id {
			p.IsClosed = true
			p.ClosedBy = &closedBy
			p.ClosedAt = &closedAt
			return nil
		}
	}
	return shared.ErrPeriodNotFound
}

type noopAudit struct {
	logs []internalShared.AuditLog
}

func (a *noopAudit) Record(ctx context.Context, log internalShared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService() (*Service, *mockRepository, *noopAudit) {
	repo := newMockRepository()
	audit := &noopAudit{}
	svc := NewService(repo, audit)
	svc.WithNow(func() time.Time {
		return time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	})
	return svc, repo, audit
}

func TestOpenPeriod(t *testing.T) {
	svc, _, _ := newTestService()

	period, err := svc.Open(context.Background(), 3, 2026)
	require.NoError(t, err)
	assert.Equal(t, 3, period.Month)
	assert.Equal(t, 2026, period.Year)
	assert.False(t, period.IsClosed)
}

func TestOpenDuplicatePeriod(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Open(ctx, 3, 2026)
	require.NoError(t, err)

	_, err = svc.Open(ctx, 3, 2026)
	require.ErrorIs(t, err, shared.ErrPeriodExists)
}

func TestOpenRejectsInvalidMonth(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Open(context.Background(), 13, 2026)
	require.Error(t, err)
}

func TestClosePeriod(t *testing.T) {
	svc, repo, audit := newTestService()
	ctx := context.Background()

	_, err := svc.Open(ctx, 3, 2026)
	require.NoError(t, err)

	closed, err := svc.Close(ctx, 3, 2026, 42)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, int64(42), *closed.ClosedBy)
	require.NotNil(t, closed.ClosedAt)

	stored, err := repo.Find(ctx, 3, 2026)
	require.NoError(t, err)
	assert.True(t, stored.IsClosed)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "period.close", audit.logs[0].Action)
}

func TestCloseAlreadyClosed(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Open(ctx, 3, 2026)
	require.NoError(t, err)
	_, err = svc.Close(ctx, 3, 2026, 42)
	require.NoError(t, err)

	_, err = svc.Close(ctx, 3, 2026, 42)
	require.ErrorIs(t, err, shared.ErrAlreadyClosed)
}

func TestCloseUnknownPeriod(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Close(context.Background(), 6, 2026, 42)
	require.ErrorIs(t, err, shared.ErrPeriodNotFound)
}

func TestPeriodContains(t *testing.T) {
	p := Period{Month: 3, Year: 2026}
	assert.True(t, p.Contains(time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
}
