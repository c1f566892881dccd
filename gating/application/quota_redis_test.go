package application

import (
	"context"
	"sync"
	"testing"

	"extract-gateway/gating/domain"
	"extract-gateway/gating/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisQuota monta o tracker sobre um RedisStore com as opções padrão,
// igual ao que app.Open faz em produção.
func redisQuota(t *testing.T) (*infra.RedisStore, AccountService, QuotaTracker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := infra.NewRedisStore(rdb)
	clk := &testClock{t: march}
	tiers := domain.DefaultTiers()
	return st,
		AccountService{Accounts: st, Tiers: tiers, Clock: clk.Now},
		QuotaTracker{Accounts: st, Tiers: tiers, Clock: clk.Now}
}

func TestQuota_RedisConcurrentCommitsCountExactlyN(t *testing.T) {
	st, accounts, quota := redisQuota(t)
	ctx := context.Background()
	acc, err := accounts.Create(ctx, "dev@example.com", domain.TierEnterprise)
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := quota.Commit(ctx, acc)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if err != nil {
			failed++
		}
	}
	assert.Zero(t, failed)

	got, err := st.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.MonthlyUsage.Count)
	assert.Equal(t, int64(n), got.DailyUsage.Count)
}

func TestQuota_RedisConcurrentRolloverAppliesOnce(t *testing.T) {
	st, accounts, quota := redisQuota(t)
	ctx := context.Background()
	acc, err := accounts.Create(ctx, "dev@example.com", domain.TierPro)
	require.NoError(t, err)
	_, err = st.UpdateAccount(ctx, acc.ID, func(a *domain.Account) (bool, error) {
		a.MonthlyUsage = domain.Usage{Count: 500, WindowStart: "2026-02"}
		a.DailyUsage = domain.Usage{Count: 7, WindowStart: "2026-02-28"}
		return true, nil
	})
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := quota.CheckAndReserve(ctx, acc); err != nil {
				errs <- err
				return
			}
			_, err := quota.Commit(ctx, acc)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := st.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Usage{Count: n, WindowStart: "2026-03"}, got.MonthlyUsage)
	assert.Equal(t, domain.Usage{Count: n, WindowStart: "2026-03-20"}, got.DailyUsage)
}

func TestQuota_RedisMissingAccountIsInfra(t *testing.T) {
	_, _, quota := redisQuota(t)

	_, err := quota.CheckAndReserve(context.Background(), domain.Account{ID: "gone", Tier: domain.TierFree})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInfrastructure)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
