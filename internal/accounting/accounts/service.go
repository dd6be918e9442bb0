package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/meridian-moto/meridian-erp/internal/accounting/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// CreateInput carries fields for a new account.
type CreateInput struct {
	Code     string
	Name     string
	Type     AccountType
	ParentID *int64
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if strings.TrimSpace(in.Code) == "" {
		return Account{}, errors.New("accounting: account code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return Account{}, errors.New("accounting: account name required")
	}
	if !in.Type.IsValid() {
		return Account{}, errors.New("accounting: unknown account type")
	}
	if in.ParentID != nil {
		if _, err := s.repo.Get(ctx, *in.ParentID); err != nil {
			return Account{}, err
		}
	}
	return s.repo.Create(ctx, Account{
		Code:     strings.TrimSpace(in.Code),
		Name:     strings.TrimSpace(in.Name),
		Type:     in.Type,
		ParentID: in.ParentID,
		IsActive: true,
	})
}

// UpdateInput carries mutable account fields. Nil pointers leave the field as is.
type UpdateInput struct {
	ID       int64
	Name     *string
	Type     *AccountType
	ParentID *int64
	IsActive *bool
}

// Update edits an account. Changing the type of an account already referenced
// by posted journal lines is rejected.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Account, error) {
	current, err := s.repo.Get(ctx, in.ID)
	if err != nil {
		return Account{}, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return Account{}, errors.New("accounting: account name required")
		}
		current.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil && *in.Type != current.Type {
		if !in.Type.IsValid() {
			return Account{}, errors.New("accounting: unknown account type")
		}
		referenced, err := s.repo.IsReferenced(ctx, in.ID)
		if err != nil {
			return Account{}, err
		}
		if referenced {
			return Account{}, shared.ErrAccountTypeLocked
		}
		current.Type = *in.Type
	}
	if in.ParentID != nil {
		if err := s.ensureAcyclic(ctx, in.ID, *in.ParentID); err != nil {
			return Account{}, err
		}
		current.ParentID = in.ParentID
	}
	if in.IsActive != nil {
		current.IsActive = *in.IsActive
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return Account{}, err
	}
	return current, nil
}

// ensureAcyclic walks the proposed parent chain and rejects loops back to id.
func (s *Service) ensureAcyclic(ctx context.Context, id, parentID int64) error {
	seen := map[int64]bool{id: true}
	next := parentID
	for next != 0 {
		if seen[next] {
			return shared.ErrAccountCycle
		}
		seen[next] = true
		parent, err := s.repo.Get(ctx, next)
		if err != nil {
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		next = *parent.ParentID
	}
	return nil
}
