package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

func reencode(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Service serves the read-side reports. Results come from the versioned
// Redis cache when warm; concurrent identical requests collapse to a single
// loader run via singleflight.
type Service struct {
	repo         Repository
	cache        *Cache
	taxAccountID int64
	group        singleflight.Group
	now          func() time.Time
}

func NewService(repo Repository, cache *Cache, taxAccountID int64) *Service {
	return &Service{repo: repo, cache: cache, taxAccountID: taxAccountID, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Invalidate bumps the cache version so the next report read refetches.
// Exposed over POST /reports/invalidate for use after batch imports; routine
// postings rely on the short TTL instead of bumping on every write.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) fetch(ctx context.Context, keyBase string, dest any, loader func(context.Context) (any, error)) error {
	key, err := s.cache.BuildKey(ctx, keyBase)
	if err != nil {
		return err
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var out any
		err := s.cache.FetchJSON(ctx, key, &out, loader)
		return out, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return reencode(res.Val, dest)
	}
}

func (s *Service) ProfitAndLoss(ctx context.Context, year, month int) (ProfitAndLoss, error) {
	var report ProfitAndLoss
	err := s.fetch(ctx, fmt.Sprintf("reports:pl:%d:%02d", year, month), &report, func(ctx context.Context) (any, error) {
		balances, err := s.repo.AccountBalances(ctx, year, month)
		if err != nil {
			return nil, err
		}
		return BuildProfitAndLoss(year, month, balances), nil
	})
	return report, err
}

func (s *Service) TrialBalance(ctx context.Context, year, month int) (TrialBalance, error) {
	var report TrialBalance
	err := s.fetch(ctx, fmt.Sprintf("reports:tb:%d:%02d", year, month), &report, func(ctx context.Context) (any, error) {
		balances, err := s.repo.AccountBalances(ctx, year, month)
		if err != nil {
			return nil, err
		}
		return BuildTrialBalance(year, month, balances), nil
	})
	return report, err
}

func (s *Service) VatSummary(ctx context.Context, year, month int) (VatSummary, error) {
	var report VatSummary
	err := s.fetch(ctx, fmt.Sprintf("reports:vat:%d:%02d", year, month), &report, func(ctx context.Context) (any, error) {
		debit, credit, err := s.repo.TaxAccountTotals(ctx, s.taxAccountID, year, month)
		if err != nil {
			return nil, err
		}
		return BuildVatSummary(year, month, debit, credit), nil
	})
	return report, err
}

func (s *Service) APAging(ctx context.Context) (APAging, error) {
	asOf := s.now().UTC().Truncate(24 * time.Hour)
	var report APAging
	err := s.fetch(ctx, fmt.Sprintf("reports:apaging:%s", asOf.Format("2006-01-02")), &report, func(ctx context.Context) (any, error) {
		invoices, err := s.repo.OpenInvoices(ctx)
		if err != nil {
			return nil, err
		}
		return BuildAPAging(asOf, invoices), nil
	})
	return report, err
}
