package application

import (
	"context"

	"extract-gateway/gating/domain"
)

// QuotaStatus é a foto do uso depois do check ou do commit.
type QuotaStatus struct {
	Tier    domain.Tier
	Limits  domain.TierLimits
	Monthly domain.Usage
	Daily   domain.Usage
}

// MonthlyRemaining retorna domain.Unlimited quando não há teto.
func (s QuotaStatus) MonthlyRemaining() int64 {
	if s.Limits.MonthlyUnlimited() {
		return domain.Unlimited
	}
	if r := s.Limits.MonthlyRequestLimit - s.Monthly.Count; r > 0 {
		return r
	}
	return 0
}

// QuotaTracker mantém os contadores mensal e diário por conta.
//
// CheckAndReserve só lê (e vira a janela quando o mês/dia mudou); Commit é o
// incremento, chamado apenas depois que a operação protegida deu certo.
// Quando Accounts implementa domain.UsageCounter os dois viram um comando
// só no servidor; senão passam por UpdateAccount.
type QuotaTracker struct {
	Accounts domain.AccountStore
	Tiers    domain.Tiers
	Clock    Clock
}

// roll vira as janelas mensal e diária. Dentro de UpdateAccount isso é um
// compare-and-set: a segunda requisição do mês novo já vê a janela nova e
// não zera de novo.
func roll(a *domain.Account, month, day string) bool {
	m := a.MonthlyUsage.Roll(month)
	d := a.DailyUsage.Roll(day)
	return m || d
}

func (q QuotaTracker) CheckAndReserve(ctx context.Context, acc domain.Account) (QuotaStatus, error) {
	now := q.Clock.now()
	month, day := domain.MonthWindow(now), domain.DayWindow(now)

	var cur domain.Account
	var err error
	if uc, ok := q.Accounts.(domain.UsageCounter); ok {
		cur, err = uc.RollUsage(ctx, acc.ID, month, day, now)
	} else {
		cur, err = q.Accounts.UpdateAccount(ctx, acc.ID, func(a *domain.Account) (bool, error) {
			if !roll(a, month, day) {
				return false, nil
			}
			a.UpdatedAt = now
			return true, nil
		})
	}
	if err != nil {
		return QuotaStatus{}, domain.Infra("quota.check", err)
	}

	st, err := q.status(cur)
	if err != nil {
		return QuotaStatus{}, err
	}

	if !st.Limits.MonthlyUnlimited() && st.Monthly.Count >= st.Limits.MonthlyRequestLimit {
		return st, &domain.QuotaExceededError{
			Period: domain.PeriodMonthly,
			Count:  st.Monthly.Count,
			Limit:  st.Limits.MonthlyRequestLimit,
			Tier:   st.Tier,
		}
	}
	if st.Limits.HasDailyLimit() && st.Daily.Count >= st.Limits.DailyRequestLimit {
		return st, &domain.QuotaExceededError{
			Period: domain.PeriodDaily,
			Count:  st.Daily.Count,
			Limit:  st.Limits.DailyRequestLimit,
			Tier:   st.Tier,
		}
	}
	return st, nil
}

// Commit soma exatamente 1 nos contadores, de forma atômica no store.
func (q QuotaTracker) Commit(ctx context.Context, acc domain.Account) (QuotaStatus, error) {
	now := q.Clock.now()
	month, day := domain.MonthWindow(now), domain.DayWindow(now)

	var cur domain.Account
	var err error
	if uc, ok := q.Accounts.(domain.UsageCounter); ok {
		cur, err = uc.IncrementUsage(ctx, acc.ID, month, day, now)
	} else {
		cur, err = q.Accounts.UpdateAccount(ctx, acc.ID, func(a *domain.Account) (bool, error) {
			roll(a, month, day)
			a.MonthlyUsage.Count++
			a.DailyUsage.Count++
			a.UpdatedAt = now
			return true, nil
		})
	}
	if err != nil {
		return QuotaStatus{}, domain.Infra("quota.commit", err)
	}
	return q.status(cur)
}

// Usage é a visão só de leitura, já considerando a janela corrente.
func (q QuotaTracker) Usage(ctx context.Context, accountID string) (QuotaStatus, error) {
	acc, err := q.Accounts.GetAccount(ctx, accountID)
	if err != nil {
		return QuotaStatus{}, err
	}
	now := q.Clock.now()
	roll(&acc, domain.MonthWindow(now), domain.DayWindow(now))
	return q.status(acc)
}

func (q QuotaTracker) status(acc domain.Account) (QuotaStatus, error) {
	limits, err := q.Tiers.Lookup(acc.Tier)
	if err != nil {
		// tier fora da tabela é erro de configuração, não do cliente
		return QuotaStatus{}, domain.Infra("quota.tier", err)
	}
	return QuotaStatus{
		Tier:    acc.Tier,
		Limits:  limits,
		Monthly: acc.MonthlyUsage,
		Daily:   acc.DailyUsage,
	}, nil
}
