package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"extract-gateway/gating/domain"

	"github.com/sirupsen/logrus"
)

const dummySecret = "timing-equalizer-not-a-real-secret"

// Authenticator resolve o bearer numa conta.
//
// A credencial traz o id da chave, então a resolução é uma leitura indexada +
// uma comparação de hash, independente de quantas chaves existem.
type Authenticator struct {
	Accounts domain.AccountStore
	Keys     domain.KeyStore
	Hasher   domain.Hasher
	// Recorder recebe o lastUsedAt; nil desliga.
	Recorder *UsageRecorder
	Logger   logrus.FieldLogger

	dummyMu   sync.Mutex
	dummyHash string
}

// Warm calcula o hash usado nas buscas sem chave. Chamado no boot para que
// um Hasher quebrado apareça antes da primeira requisição.
func (a *Authenticator) Warm() error {
	if _, err := a.loadDummy(); err != nil {
		return fmt.Errorf("auth: dummy hash: %w", err)
	}
	return nil
}

func (a *Authenticator) Authenticate(ctx context.Context, bearer string) (domain.Principal, error) {
	cred, err := domain.ParseCredential(bearer)
	if err != nil {
		return domain.Principal{}, err
	}

	key, err := a.Keys.GetKey(ctx, cred.KeyID)
	if errors.Is(err, domain.ErrNotFound) {
		// mesmo custo de uma chave existente: tempo de resposta não revela ids
		a.Hasher.Compare(a.dummy(), cred.Secret)
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Principal{}, domain.Infra("auth.key", err)
	}

	if !a.Hasher.Compare(key.Hash, cred.Secret) {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if key.Mode() != cred.Mode || !key.Active {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	acc, err := a.Accounts.GetAccount(ctx, key.AccountID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Principal{}, domain.Infra("auth.account", err)
	}
	if !acc.Active {
		return domain.Principal{}, domain.ErrForbidden
	}

	if a.Recorder != nil {
		a.Recorder.Touch(key.ID)
	}

	return domain.Principal{Account: acc, KeyID: key.ID, IsTestKey: key.IsTestKey}, nil
}

func (a *Authenticator) dummy() string {
	h, err := a.loadDummy()
	if err != nil {
		a.logger().WithError(err).Warn("auth: dummy hash failed, unknown key ids are answered without the compare")
	}
	return h
}

// loadDummy não memoriza falha: a próxima busca sem chave tenta de novo.
func (a *Authenticator) loadDummy() (string, error) {
	a.dummyMu.Lock()
	defer a.dummyMu.Unlock()
	if a.dummyHash != "" {
		return a.dummyHash, nil
	}
	h, err := a.Hasher.Hash(dummySecret)
	if err != nil {
		return "", err
	}
	a.dummyHash = h
	return h, nil
}

func (a *Authenticator) logger() logrus.FieldLogger {
	if a.Logger == nil {
		return logrus.StandardLogger()
	}
	return a.Logger
}
