package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"extract-gateway/gating/domain"

	"github.com/redis/go-redis/v9"
)

const maxTxBackoff = 50 * time.Millisecond

// vira as janelas e, com ARGV[3] == '1', soma 1 nos dois contadores, tudo
// dentro do servidor. Sem conta retorna false (redis.Nil no cliente).
// Só regrava o documento quando algo mudou.
var usageScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return false
end
local a = cjson.decode(raw)
local function roll(u, window)
  if u.window_start == window then
    return false
  end
  u.count = 0
  u.window_start = window
  return true
end
if type(a.monthly_usage) ~= 'table' then a.monthly_usage = {count = 0, window_start = ''} end
if type(a.daily_usage) ~= 'table' then a.daily_usage = {count = 0, window_start = ''} end
local changed = roll(a.monthly_usage, ARGV[1])
changed = roll(a.daily_usage, ARGV[2]) or changed
if ARGV[3] == '1' then
  a.monthly_usage.count = a.monthly_usage.count + 1
  a.daily_usage.count = a.daily_usage.count + 1
  changed = true
end
if not changed then
  return raw
end
a.updated_at = ARGV[4]
raw = cjson.encode(a)
redis.call('SET', KEYS[1], raw)
return raw
`)

// RedisStore guarda contas e chaves como documentos JSON.
//
//	<prefix>:account:<id>        conta
//	<prefix>:account:<id>:keys   set com os ids das chaves da conta
//	<prefix>:apikey:<id>         chave
//
// Atualizações genéricas usam WATCH/MULTI: se outra instância mexeu no
// documento entre a leitura e o EXEC, a transação é refeita com o valor novo
// (com backoff, até o ctx acabar). O caminho quente da quota não passa por
// aí: RollUsage e IncrementUsage rodam um script no servidor.
type RedisStore struct {
	rdb       redis.UniversalClient
	prefix    string
	txRetries int
}

type RedisStoreOption func(*RedisStore)

func WithStorePrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithTxRetries limita as tentativas de uma transação WATCH. O padrão (0)
// é tentar até o ctx vencer.
func WithTxRetries(n int) RedisStoreOption {
	return func(s *RedisStore) { s.txRetries = max(n, 0) }
}

func NewRedisStore(rdb redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: "gate"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) accountKey(id string) string { return s.prefix + ":account:" + id }
func (s *RedisStore) accountKeysKey(id string) string {
	return s.prefix + ":account:" + id + ":keys"
}
func (s *RedisStore) apiKeyKey(id string) string { return s.prefix + ":apikey:" + id }

func (s *RedisStore) CreateAccount(ctx context.Context, a domain.Account) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.accountKey(a.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("redis create account: %w", err)
	}
	if !ok {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var a domain.Account
	if err := s.getJSON(ctx, s.rdb, s.accountKey(id), &a, domain.ErrAccountNotFound); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (s *RedisStore) UpdateAccount(ctx context.Context, id string, fn domain.AccountMutator) (domain.Account, error) {
	var out domain.Account
	err := s.update(ctx, s.accountKey(id), func(tx *redis.Tx) (any, bool, error) {
		var a domain.Account
		if err := s.getJSON(ctx, tx, s.accountKey(id), &a, domain.ErrAccountNotFound); err != nil {
			return nil, false, err
		}
		changed, err := fn(&a)
		if err != nil {
			return nil, false, err
		}
		out = a
		return a, changed, nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return out, nil
}

func (s *RedisStore) RollUsage(ctx context.Context, id, month, day string, at time.Time) (domain.Account, error) {
	return s.runUsage(ctx, id, month, day, false, at)
}

func (s *RedisStore) IncrementUsage(ctx context.Context, id, month, day string, at time.Time) (domain.Account, error) {
	return s.runUsage(ctx, id, month, day, true, at)
}

func (s *RedisStore) runUsage(ctx context.Context, id, month, day string, incr bool, at time.Time) (domain.Account, error) {
	flag := "0"
	if incr {
		flag = "1"
	}
	raw, err := usageScript.Run(ctx, s.rdb, []string{s.accountKey(id)},
		month, day, flag, at.UTC().Format(time.RFC3339Nano)).Text()
	if errors.Is(err, redis.Nil) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("redis usage %s: %w", id, err)
	}
	var a domain.Account
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return domain.Account{}, fmt.Errorf("redis decode %s: %w", s.accountKey(id), err)
	}
	return a, nil
}

func (s *RedisStore) CreateKey(ctx context.Context, k domain.APIKey) error {
	raw, err := json.Marshal(k)
	if err != nil {
		return err
	}
	key := s.apiKeyKey(k.ID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, raw, 0)
			p.SAdd(ctx, s.accountKeysKey(k.AccountID), k.ID)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrAlreadyExists):
		return err
	case errors.Is(err, redis.TxFailedErr):
		// alguém criou a mesma chave no meio: ids são aleatórios, então é colisão real
		return domain.ErrAlreadyExists
	default:
		return fmt.Errorf("redis create key: %w", err)
	}
}

func (s *RedisStore) GetKey(ctx context.Context, id string) (domain.APIKey, error) {
	var k domain.APIKey
	if err := s.getJSON(ctx, s.rdb, s.apiKeyKey(id), &k, domain.ErrKeyNotFound); err != nil {
		return domain.APIKey{}, err
	}
	return k, nil
}

func (s *RedisStore) ListKeys(ctx context.Context, accountID string) ([]domain.APIKey, error) {
	ids, err := s.rdb.SMembers(ctx, s.accountKeysKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list keys: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.apiKeyKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list keys: %w", err)
	}

	out := make([]domain.APIKey, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var k domain.APIKey
		if err := json.Unmarshal([]byte(str), &k); err != nil {
			return nil, fmt.Errorf("redis list keys: decode: %w", err)
		}
		out = append(out, k)
	}
	sortKeys(out)
	return out, nil
}

func (s *RedisStore) UpdateKey(ctx context.Context, id string, fn domain.KeyMutator) (domain.APIKey, error) {
	var out domain.APIKey
	err := s.update(ctx, s.apiKeyKey(id), func(tx *redis.Tx) (any, bool, error) {
		var k domain.APIKey
		if err := s.getJSON(ctx, tx, s.apiKeyKey(id), &k, domain.ErrKeyNotFound); err != nil {
			return nil, false, err
		}
		changed, err := fn(&k)
		if err != nil {
			return nil, false, err
		}
		out = k
		return k, changed, nil
	})
	if err != nil {
		return domain.APIKey{}, err
	}
	return out, nil
}

// update faz o ciclo WATCH -> GET -> fn -> MULTI/SET/EXEC, refazendo quando
// o EXEC falha por conflito. Erros de load (leitura ou do mutator) sobem como estão.
func (s *RedisStore) update(ctx context.Context, key string, load func(tx *redis.Tx) (any, bool, error)) error {
	for attempt := 0; s.txRetries == 0 || attempt < s.txRetries; attempt++ {
		if attempt > 0 {
			if err := txBackoff(ctx, attempt); err != nil {
				return fmt.Errorf("redis update %s: %w: %w", key, domain.ErrConflict, err)
			}
		}

		var loadErr error
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			doc, changed, err := load(tx)
			if err != nil {
				loadErr = err
				return err
			}
			if !changed {
				return nil
			}
			raw, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, raw, 0)
				return nil
			})
			return err
		}, key)

		switch {
		case loadErr != nil:
			return loadErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		case err != nil:
			return fmt.Errorf("redis update %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("redis update %s: %w", key, domain.ErrConflict)
}

// txBackoff espera um tempo aleatório que cresce com a tentativa, para que
// escritores em disputa não voltem todos juntos.
func txBackoff(ctx context.Context, attempt int) error {
	ceil := min(time.Millisecond<<min(attempt, 6), maxTxBackoff)
	t := time.NewTimer(rand.N(ceil) + time.Millisecond/4)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) getJSON(ctx context.Context, g getter, key string, dst any, notFound error) error {
	raw, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("redis decode %s: %w", key, err)
	}
	return nil
}
