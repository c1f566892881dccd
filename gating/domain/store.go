package domain

import (
	"context"
	"time"
)

// AccountMutator altera a conta dentro de uma atualização atômica.
// Retornar changed=false pula a escrita; erro aborta sem gravar nada.
type AccountMutator func(a *Account) (changed bool, err error)

type KeyMutator func(k *APIKey) (changed bool, err error)

// AccountStore é um store de documentos com read-modify-write atômico por
// conta. UpdateAccount é o único caminho de escrita concorrente: a
// implementação garante que fn vê a versão mais recente e que duas
// atualizações da mesma conta não se sobrepõem.
type AccountStore interface {
	CreateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, id string) (Account, error)
	UpdateAccount(ctx context.Context, id string, fn AccountMutator) (Account, error)
}

// KeyStore guarda chaves por id. O id é público e vem embutido na
// credencial, então a busca é indexada (sem varrer hashes).
type KeyStore interface {
	CreateKey(ctx context.Context, k APIKey) error
	GetKey(ctx context.Context, id string) (APIKey, error)
	ListKeys(ctx context.Context, accountID string) ([]APIKey, error)
	UpdateKey(ctx context.Context, id string, fn KeyMutator) (APIKey, error)
}

// UsageCounter é opcional: stores que sabem virar a janela e incrementar os
// contadores num único comando no servidor, sem ciclo de leitura e escrita.
// RollUsage só grava quando a janela mudou; IncrementUsage vira e soma 1.
type UsageCounter interface {
	RollUsage(ctx context.Context, id, month, day string, at time.Time) (Account, error)
	IncrementUsage(ctx context.Context, id, month, day string, at time.Time) (Account, error)
}

// Store junta os dois; os backends implementam ambos.
type Store interface {
	AccountStore
	KeyStore
}

// Hasher é a função de hash lenta e salgada do segredo.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}

// Principal é o resultado da autenticação.
type Principal struct {
	Account   Account
	KeyID     string
	IsTestKey bool
}
