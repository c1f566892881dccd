package application

import (
	"context"
	"fmt"
	"strings"

	"extract-gateway/gating/domain"

	"github.com/google/uuid"
)

// AccountService cobre o cadastro e as ações administrativas sobre contas.
type AccountService struct {
	Accounts domain.AccountStore
	Tiers    domain.Tiers
	Clock    Clock
}

func (s AccountService) Create(ctx context.Context, email string, tier domain.Tier) (domain.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Account{}, fmt.Errorf("email required")
	}
	if _, err := s.Tiers.Lookup(tier); err != nil {
		return domain.Account{}, err
	}

	now := s.Clock.now()
	acc := domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Tier:         tier,
		MonthlyUsage: domain.Usage{WindowStart: domain.MonthWindow(now)},
		DailyUsage:   domain.Usage{WindowStart: domain.DayWindow(now)},
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Accounts.CreateAccount(ctx, acc); err != nil {
		return domain.Account{}, domain.Infra("account.create", err)
	}
	return acc, nil
}

func (s AccountService) Get(ctx context.Context, id string) (domain.Account, error) {
	return s.Accounts.GetAccount(ctx, id)
}

// SetActive suspende (false) ou reativa (true) a conta.
func (s AccountService) SetActive(ctx context.Context, id string, active bool) (domain.Account, error) {
	return s.Accounts.UpdateAccount(ctx, id, func(a *domain.Account) (bool, error) {
		if a.Active == active {
			return false, nil
		}
		a.Active = active
		a.UpdatedAt = s.Clock.now()
		return true, nil
	})
}

func (s AccountService) SetTier(ctx context.Context, id string, tier domain.Tier) (domain.Account, error) {
	if _, err := s.Tiers.Lookup(tier); err != nil {
		return domain.Account{}, err
	}
	return s.Accounts.UpdateAccount(ctx, id, func(a *domain.Account) (bool, error) {
		if a.Tier == tier {
			return false, nil
		}
		a.Tier = tier
		a.UpdatedAt = s.Clock.now()
		return true, nil
	})
}
