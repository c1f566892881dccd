package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"extract-gateway/gating/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// store com as opções padrão: é assim que app.Open monta
func newMiniredisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, rdb := newMiniredisClient(t)
	return mr, NewRedisStore(rdb)
}

func TestRedisStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) domain.Store {
		_, s := newMiniredisStore(t)
		return s
	})
}

func TestRedisStore_Layout(t *testing.T) {
	mr, s := newMiniredisStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAccount(ctx, newAccount("acc")))
	require.NoError(t, s.CreateKey(ctx, domain.APIKey{ID: "kid", AccountID: "acc", Hash: "h", Active: true}))

	assert.True(t, mr.Exists("gate:account:acc"))
	assert.True(t, mr.Exists("gate:apikey:kid"))
	members, err := mr.Members("gate:account:acc:keys")
	require.NoError(t, err)
	assert.Equal(t, []string{"kid"}, members)

	raw, err := mr.Get("gate:apikey:kid")
	require.NoError(t, err)
	assert.NotContains(t, raw, "plaintext")
	assert.Contains(t, raw, `"hash":"h"`)
}

func TestRedisStore_BackendDownIsAnError(t *testing.T) {
	mr, s := newMiniredisStore(t)
	mr.Close()

	_, err := s.GetAccount(context.Background(), "acc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisStore_IncrementUsageConcurrent(t *testing.T) {
	_, s := newMiniredisStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, newAccount("hot")))

	at := created.Add(time.Hour)
	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.IncrementUsage(ctx, "hot", "2026-03", "2026-03-01", at)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetAccount(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.MonthlyUsage.Count)
	assert.Equal(t, int64(n), got.DailyUsage.Count)
	assert.Equal(t, "2026-03-01", got.DailyUsage.WindowStart)
	assert.True(t, got.UpdatedAt.Equal(at))
	// o resto do documento sobrevive à reescrita pelo script
	assert.Equal(t, "hot@example.com", got.Email)
	assert.Equal(t, domain.TierFree, got.Tier)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestRedisStore_RollUsage(t *testing.T) {
	mr, s := newMiniredisStore(t)
	ctx := context.Background()

	acc := newAccount("acc")
	acc.MonthlyUsage = domain.Usage{Count: 40, WindowStart: "2026-02"}
	acc.DailyUsage = domain.Usage{Count: 3, WindowStart: "2026-02-28"}
	require.NoError(t, s.CreateAccount(ctx, acc))
	at := created.Add(time.Minute)

	got, err := s.RollUsage(ctx, "acc", "2026-03", "2026-03-01", at)
	require.NoError(t, err)
	assert.Equal(t, domain.Usage{Count: 0, WindowStart: "2026-03"}, got.MonthlyUsage)
	assert.Equal(t, domain.Usage{Count: 0, WindowStart: "2026-03-01"}, got.DailyUsage)

	_, err = s.IncrementUsage(ctx, "acc", "2026-03", "2026-03-01", at)
	require.NoError(t, err)

	// a janela já virou: rodar de novo não zera e não regrava
	before, err := mr.Get("gate:account:acc")
	require.NoError(t, err)
	got, err = s.RollUsage(ctx, "acc", "2026-03", "2026-03-01", at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.MonthlyUsage.Count)
	after, err := mr.Get("gate:account:acc")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = s.RollUsage(ctx, "missing", "2026-03", "2026-03-01", at)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = s.IncrementUsage(ctx, "missing", "2026-03", "2026-03-01", at)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestRedisStore_UpdateRetriesUntilDeadline(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	s := NewRedisStore(rdb)
	require.NoError(t, s.CreateAccount(context.Background(), newAccount("acc")))
	raw, err := rdb.Get(context.Background(), "gate:account:acc").Result()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	attempts := 0
	start := time.Now()
	_, err = s.UpdateAccount(ctx, "acc", func(a *domain.Account) (bool, error) {
		attempts++
		// outra conexão escreve entre o WATCH e o EXEC: toda tentativa conflita
		require.NoError(t, rdb.Set(context.Background(), "gate:account:acc", raw, 0).Err())
		a.MonthlyUsage.Count++
		return true, nil
	})
	// desiste por causa do ctx, não de um número fixo de tentativas
	require.Error(t, err)
	assert.Greater(t, attempts, 2)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRedisStore_TxRetriesCap(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	s := NewRedisStore(rdb, WithTxRetries(3))
	require.NoError(t, s.CreateAccount(context.Background(), newAccount("acc")))
	raw, err := rdb.Get(context.Background(), "gate:account:acc").Result()
	require.NoError(t, err)

	attempts := 0
	_, err = s.UpdateAccount(context.Background(), "acc", func(a *domain.Account) (bool, error) {
		attempts++
		require.NoError(t, rdb.Set(context.Background(), "gate:account:acc", raw, 0).Err())
		return true, nil
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 3, attempts)
}
