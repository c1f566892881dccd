package infra

import (
	"context"
	"sync"

	"extract-gateway/gating/domain"

	"github.com/cespare/xxhash/v2"
)

const memoryShards = 32

// MemoryStore é o backend de teste/desenvolvimento. Cada shard tem seu mutex,
// então o lock cobre só o registro (e vizinhos de shard), nunca o processo todo.
type MemoryStore struct {
	accounts [memoryShards]accountShard
	keys     [memoryShards]keyShard
}

type accountShard struct {
	mu sync.Mutex
	m  map[string]domain.Account
}

type keyShard struct {
	mu sync.Mutex
	m  map[string]domain.APIKey
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.accounts {
		s.accounts[i].m = make(map[string]domain.Account)
		s.keys[i].m = make(map[string]domain.APIKey)
	}
	return s
}

func memShard(id string) int { return int(xxhash.Sum64String(id) % memoryShards) }

func (s *MemoryStore) CreateAccount(_ context.Context, a domain.Account) error {
	sh := &s.accounts[memShard(a.ID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.m[a.ID]; ok {
		return domain.ErrAlreadyExists
	}
	sh.m[a.ID] = a
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (domain.Account, error) {
	sh := &s.accounts[memShard(id)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	a, ok := sh.m[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return a, nil
}

func (s *MemoryStore) UpdateAccount(_ context.Context, id string, fn domain.AccountMutator) (domain.Account, error) {
	sh := &s.accounts[memShard(id)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	a, ok := sh.m[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	changed, err := fn(&a)
	if err != nil {
		return domain.Account{}, err
	}
	if changed {
		sh.m[id] = a
	}
	return a, nil
}

func (s *MemoryStore) CreateKey(_ context.Context, k domain.APIKey) error {
	sh := &s.keys[memShard(k.ID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.m[k.ID]; ok {
		return domain.ErrAlreadyExists
	}
	sh.m[k.ID] = cloneKey(k)
	return nil
}

func (s *MemoryStore) GetKey(_ context.Context, id string) (domain.APIKey, error) {
	sh := &s.keys[memShard(id)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	k, ok := sh.m[id]
	if !ok {
		return domain.APIKey{}, domain.ErrKeyNotFound
	}
	return cloneKey(k), nil
}

// ListKeys varre todos os shards; é operação administrativa, fora do caminho
// quente da autenticação.
func (s *MemoryStore) ListKeys(_ context.Context, accountID string) ([]domain.APIKey, error) {
	var out []domain.APIKey
	for i := range s.keys {
		sh := &s.keys[i]
		sh.mu.Lock()
		for _, k := range sh.m {
			if k.AccountID == accountID {
				out = append(out, cloneKey(k))
			}
		}
		sh.mu.Unlock()
	}
	sortKeys(out)
	return out, nil
}

func (s *MemoryStore) UpdateKey(_ context.Context, id string, fn domain.KeyMutator) (domain.APIKey, error) {
	sh := &s.keys[memShard(id)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	k, ok := sh.m[id]
	if !ok {
		return domain.APIKey{}, domain.ErrKeyNotFound
	}
	k = cloneKey(k)
	changed, err := fn(&k)
	if err != nil {
		return domain.APIKey{}, err
	}
	if changed {
		sh.m[id] = cloneKey(k)
	}
	return k, nil
}
