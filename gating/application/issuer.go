package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"extract-gateway/gating/domain"

	"github.com/google/uuid"
)

// IssuedKey é a única vez que o segredo em texto aparece.
type IssuedKey struct {
	Plaintext string
	KeyID     string
}

type KeyIssuer struct {
	Accounts domain.AccountStore
	Keys     domain.KeyStore
	Hasher   domain.Hasher
	Clock    Clock
}

// Issue gera, persiste e só então devolve a chave. Se a escrita falhar nada
// é devolvido.
func (i KeyIssuer) Issue(ctx context.Context, accountID, label string, isTestKey bool) (IssuedKey, error) {
	if _, err := i.Accounts.GetAccount(ctx, accountID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return IssuedKey{}, domain.ErrAccountNotFound
		}
		return IssuedKey{}, domain.Infra("issue.account", err)
	}

	secret, err := newSecret()
	if err != nil {
		return IssuedKey{}, domain.Infra("issue.secret", err)
	}
	hash, err := i.Hasher.Hash(secret)
	if err != nil {
		return IssuedKey{}, domain.Infra("issue.hash", err)
	}

	rec := domain.APIKey{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		AccountID: accountID,
		Hash:      hash,
		Label:     strings.TrimSpace(label),
		IsTestKey: isTestKey,
		Active:    true,
		CreatedAt: i.Clock.now(),
	}
	if err := i.Keys.CreateKey(ctx, rec); err != nil {
		return IssuedKey{}, domain.Infra("issue.persist", err)
	}

	return IssuedKey{
		Plaintext: domain.FormatCredential(rec.Mode(), rec.ID, secret),
		KeyID:     rec.ID,
	}, nil
}

// Revoke desativa a chave. O registro fica para auditoria.
func (i KeyIssuer) Revoke(ctx context.Context, keyID string) (domain.APIKey, error) {
	k, err := i.Keys.UpdateKey(ctx, keyID, func(k *domain.APIKey) (bool, error) {
		if !k.Active {
			return false, nil
		}
		now := i.Clock.now()
		k.Active = false
		k.RevokedAt = &now
		return true, nil
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.APIKey{}, domain.Infra("revoke", err)
	}
	return k, err
}

func (i KeyIssuer) List(ctx context.Context, accountID string) ([]domain.APIKey, error) {
	keys, err := i.Keys.ListKeys(ctx, accountID)
	if err != nil {
		return nil, domain.Infra("list keys", err)
	}
	return keys, nil
}

func newSecret() (string, error) {
	buf := make([]byte, domain.SecretLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
