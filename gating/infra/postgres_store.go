package infra

import (
	"context"
	"errors"
	"fmt"

	"extract-gateway/gating/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL,
	tier           TEXT NOT NULL,
	monthly_count  BIGINT NOT NULL DEFAULT 0,
	monthly_window TEXT NOT NULL DEFAULT '',
	daily_count    BIGINT NOT NULL DEFAULT 0,
	daily_window   TEXT NOT NULL DEFAULT '',
	active         BOOLEAN NOT NULL DEFAULT TRUE,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS api_keys (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL REFERENCES accounts(id),
	hash         TEXT NOT NULL,
	label        TEXT NOT NULL DEFAULT '',
	is_test_key  BOOLEAN NOT NULL DEFAULT FALSE,
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL,
	last_used_at TIMESTAMPTZ,
	revoked_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS api_keys_account_id_idx ON api_keys (account_id);
`

const (
	accountColumns = `id, email, tier, monthly_count, monthly_window, daily_count, daily_window, active, created_at, updated_at`
	keyColumns     = `id, account_id, hash, label, is_test_key, active, created_at, last_used_at, revoked_at`
)

// PostgresStore usa uma linha por documento; UpdateAccount/UpdateKey fazem
// SELECT ... FOR UPDATE dentro da transação, então atualizações da mesma
// conta são serializadas pelo lock de linha.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate cria as tabelas se não existirem.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.Email, string(a.Tier),
		a.MonthlyUsage.Count, a.MonthlyUsage.WindowStart,
		a.DailyUsage.Count, a.DailyUsage.WindowStart,
		a.Active, a.CreatedAt, a.UpdatedAt,
	)
	return pgError("create account", err)
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return a, pgError("get account", err)
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, id string, fn domain.AccountMutator) (domain.Account, error) {
	var (
		out   domain.Account
		fnErr error
	)
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
		a, err := scanAccount(row)
		if errors.Is(err, pgx.ErrNoRows) {
			fnErr = domain.ErrAccountNotFound
			return fnErr
		}
		if err != nil {
			return err
		}

		changed, err := fn(&a)
		if err != nil {
			fnErr = err
			return err
		}
		out = a
		if !changed {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE accounts SET email=$2, tier=$3, monthly_count=$4, monthly_window=$5,
			daily_count=$6, daily_window=$7, active=$8, updated_at=$9 WHERE id=$1`,
			a.ID, a.Email, string(a.Tier),
			a.MonthlyUsage.Count, a.MonthlyUsage.WindowStart,
			a.DailyUsage.Count, a.DailyUsage.WindowStart,
			a.Active, a.UpdatedAt,
		)
		return err
	})
	if fnErr != nil {
		return domain.Account{}, fnErr
	}
	if err != nil {
		return domain.Account{}, pgError("update account", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateKey(ctx context.Context, k domain.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (`+keyColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		k.ID, k.AccountID, k.Hash, k.Label, k.IsTestKey, k.Active, k.CreatedAt, k.LastUsedAt, k.RevokedAt,
	)
	return pgError("create key", err)
}

func (s *PostgresStore) GetKey(ctx context.Context, id string) (domain.APIKey, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = $1`, id)
	k, err := scanKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.APIKey{}, domain.ErrKeyNotFound
	}
	return k, pgError("get key", err)
}

func (s *PostgresStore) ListKeys(ctx context.Context, accountID string) ([]domain.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE account_id = $1 ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, pgError("list keys", err)
	}
	defer rows.Close()

	var out []domain.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, pgError("list keys", err)
		}
		out = append(out, k)
	}
	return out, pgError("list keys", rows.Err())
}

func (s *PostgresStore) UpdateKey(ctx context.Context, id string, fn domain.KeyMutator) (domain.APIKey, error) {
	var (
		out   domain.APIKey
		fnErr error
	)
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = $1 FOR UPDATE`, id)
		k, err := scanKey(row)
		if errors.Is(err, pgx.ErrNoRows) {
			fnErr = domain.ErrKeyNotFound
			return fnErr
		}
		if err != nil {
			return err
		}

		changed, err := fn(&k)
		if err != nil {
			fnErr = err
			return err
		}
		out = k
		if !changed {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE api_keys SET label=$2, active=$3, last_used_at=$4, revoked_at=$5 WHERE id=$1`,
			k.ID, k.Label, k.Active, k.LastUsedAt, k.RevokedAt)
		return err
	})
	if fnErr != nil {
		return domain.APIKey{}, fnErr
	}
	if err != nil {
		return domain.APIKey{}, pgError("update key", err)
	}
	return out, nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a    domain.Account
		tier string
	)
	err := row.Scan(&a.ID, &a.Email, &tier,
		&a.MonthlyUsage.Count, &a.MonthlyUsage.WindowStart,
		&a.DailyUsage.Count, &a.DailyUsage.WindowStart,
		&a.Active, &a.CreatedAt, &a.UpdatedAt)
	a.Tier = domain.Tier(tier)
	return a, err
}

func scanKey(row pgx.Row) (domain.APIKey, error) {
	var k domain.APIKey
	err := row.Scan(&k.ID, &k.AccountID, &k.Hash, &k.Label, &k.IsTestKey, &k.Active,
		&k.CreatedAt, &k.LastUsedAt, &k.RevokedAt)
	return k, err
}

func pgError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrAlreadyExists
	}
	return fmt.Errorf("postgres %s: %w", op, err)
}
