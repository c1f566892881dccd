package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"extract-gateway/gating/domain"
	"extract-gateway/gating/infra"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errBackend = errors.New("backend unavailable")

// spyStore conta chamadas e injeta falhas por operação.
type spyStore struct {
	*infra.MemoryStore
	calls      atomic.Int64
	failGetKey bool
	failGetAcc bool
	failUpdate bool
	failCreate bool
}

func newSpyStore() *spyStore { return &spyStore{MemoryStore: infra.NewMemoryStore()} }

func (s *spyStore) GetKey(ctx context.Context, id string) (domain.APIKey, error) {
	s.calls.Add(1)
	if s.failGetKey {
		return domain.APIKey{}, errBackend
	}
	return s.MemoryStore.GetKey(ctx, id)
}

func (s *spyStore) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	s.calls.Add(1)
	if s.failGetAcc {
		return domain.Account{}, errBackend
	}
	return s.MemoryStore.GetAccount(ctx, id)
}

func (s *spyStore) UpdateAccount(ctx context.Context, id string, fn domain.AccountMutator) (domain.Account, error) {
	s.calls.Add(1)
	if s.failUpdate {
		return domain.Account{}, errBackend
	}
	return s.MemoryStore.UpdateAccount(ctx, id, fn)
}

func (s *spyStore) UpdateKey(ctx context.Context, id string, fn domain.KeyMutator) (domain.APIKey, error) {
	s.calls.Add(1)
	if s.failUpdate {
		return domain.APIKey{}, errBackend
	}
	return s.MemoryStore.UpdateKey(ctx, id, fn)
}

func (s *spyStore) CreateKey(ctx context.Context, k domain.APIKey) error {
	s.calls.Add(1)
	if s.failCreate {
		return errBackend
	}
	return s.MemoryStore.CreateKey(ctx, k)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

var march = time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *spyStore
	clock    *testClock
	hasher   domain.Hasher
	accounts AccountService
	issuer   KeyIssuer
	auth     *Authenticator
	quota    QuotaTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newSpyStore()
	clk := &testClock{t: march}
	h := infra.NewBcryptHasher(bcrypt.MinCost)
	tiers := domain.DefaultTiers()
	return &fixture{
		store:    st,
		clock:    clk,
		hasher:   h,
		accounts: AccountService{Accounts: st, Tiers: tiers, Clock: clk.Now},
		issuer:   KeyIssuer{Accounts: st, Keys: st, Hasher: h, Clock: clk.Now},
		auth:     &Authenticator{Accounts: st, Keys: st, Hasher: h},
		quota:    QuotaTracker{Accounts: st, Tiers: tiers, Clock: clk.Now},
	}
}

func (f *fixture) account(t *testing.T, tier domain.Tier) domain.Account {
	t.Helper()
	acc, err := f.accounts.Create(context.Background(), "dev@example.com", tier)
	require.NoError(t, err)
	return acc
}

func (f *fixture) setUsage(t *testing.T, id string, count int64, window string) {
	t.Helper()
	_, err := f.store.MemoryStore.UpdateAccount(context.Background(), id, func(a *domain.Account) (bool, error) {
		a.MonthlyUsage = domain.Usage{Count: count, WindowStart: window}
		return true, nil
	})
	require.NoError(t, err)
}
