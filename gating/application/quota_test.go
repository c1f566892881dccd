package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"extract-gateway/gating/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuota_FreeTierBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, domain.TierFree)
	f.setUsage(t, acc.ID, 99, "2026-03")

	_, err := f.quota.CheckAndReserve(ctx, acc)
	require.NoError(t, err, "count == limit-1 must be allowed")

	st, err := f.quota.Commit(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(100), st.Monthly.Count)
	assert.Equal(t, int64(0), st.MonthlyRemaining())

	_, err = f.quota.CheckAndReserve(ctx, acc)
	var qe *domain.QuotaExceededError
	require.True(t, errors.As(err, &qe), "expected QuotaExceededError, got %v", err)
	assert.Equal(t, domain.QuotaExceededError{Period: domain.PeriodMonthly, Count: 100, Limit: 100, Tier: domain.TierFree}, *qe)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestQuota_RejectDoesNotMutateCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, domain.TierFree)
	f.setUsage(t, acc.ID, 100, "2026-03")

	for i := 0; i < 3; i++ {
		_, err := f.quota.CheckAndReserve(ctx, acc)
		assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	}
	got, _ := f.store.GetAccount(ctx, acc.ID)
	assert.Equal(t, int64(100), got.MonthlyUsage.Count)
}

func TestQuota_MonthlyResetIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, domain.TierFree)
	f.setUsage(t, acc.ID, 100, "2026-02")

	st, err := f.quota.CheckAndReserve(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, domain.Usage{Count: 0, WindowStart: "2026-03"}, st.Monthly)

	_, err = f.quota.Commit(ctx, acc)
	require.NoError(t, err)

	// segunda requisição no mesmo mês novo: vê o reset, não reseta de novo
	st, err = f.quota.CheckAndReserve(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Monthly.Count)
}

func TestQuota_ConcurrentResetAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, domain.TierPro)
	f.setUsage(t, acc.ID, 500, "2026-02")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.quota.CheckAndReserve(ctx, acc); err == nil {
				_, _ = f.quota.Commit(ctx, acc)
			}
		}()
	}
	wg.Wait()

	got, _ := f.store.GetAccount(ctx, acc.ID)
	assert.Equal(t, "2026-03", got.MonthlyUsage.WindowStart)
	assert.Equal(t, int64(20), got.MonthlyUsage.Count, "a late reset would have wiped earlier commits")
}

func TestQuota_ConcurrentCommitsCountExactlyN(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, domain.TierPro)

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.quota.Commit(ctx, acc)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := f.quota.Usage(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), st.Monthly.Count)
	assert.Equal(t, int64(n), st.Daily.Count)
}

func TestQuota_UnlimitedTierNeverRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, domain.TierEnterprise)
	f.setUsage(t, acc.ID, 1<<40, "2026-03")

	st, err := f.quota.CheckAndReserve(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, domain.Unlimited, st.MonthlyRemaining())
}

func TestQuota_DailyLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tiers, err := domain.NewTiers(map[domain.Tier]domain.TierLimits{
		domain.TierFree: {RequestsPerMinute: 10, MonthlyRequestLimit: 100, DailyRequestLimit: 2},
	})
	require.NoError(t, err)
	f.quota.Tiers = tiers
	acc := f.account(t, domain.TierFree)

	for i := 0; i < 2; i++ {
		_, err := f.quota.CheckAndReserve(ctx, acc)
		require.NoError(t, err)
		_, err = f.quota.Commit(ctx, acc)
		require.NoError(t, err)
	}

	_, err = f.quota.CheckAndReserve(ctx, acc)
	var qe *domain.QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, domain.PeriodDaily, qe.Period)

	f.clock.Set(march.Add(24 * time.Hour))
	_, err = f.quota.CheckAndReserve(ctx, acc)
	require.NoError(t, err, "daily counter resets on the next day")
}

func TestQuota_UnknownTierIsConfigurationError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, domain.TierFree)
	_, err := f.store.MemoryStore.UpdateAccount(ctx, acc.ID, func(a *domain.Account) (bool, error) {
		a.Tier = "legacy"
		return true, nil
	})
	require.NoError(t, err)

	_, err = f.quota.CheckAndReserve(ctx, acc)
	assert.ErrorIs(t, err, domain.ErrInfrastructure)
	assert.ErrorIs(t, err, domain.ErrUnknownTier)
}

func TestQuota_StoreFailureIsInfrastructure(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, domain.TierFree)
	f.store.failUpdate = true

	_, err := f.quota.CheckAndReserve(context.Background(), acc)
	assert.ErrorIs(t, err, domain.ErrInfrastructure)
	_, err = f.quota.Commit(context.Background(), acc)
	assert.ErrorIs(t, err, domain.ErrInfrastructure)
}

func TestAccountService_RejectsUnknownTier(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.Create(context.Background(), "a@b.c", "platinum")
	assert.ErrorIs(t, err, domain.ErrUnknownTier)

	acc := f.account(t, domain.TierFree)
	_, err = f.accounts.SetTier(context.Background(), acc.ID, "platinum")
	assert.ErrorIs(t, err, domain.ErrUnknownTier)

	up, err := f.accounts.SetTier(context.Background(), acc.ID, domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, up.Tier)
}
