package gate

import (
	"context"
	"net/http"
	"time"

	"extract-gateway/gating/application"
	"extract-gateway/gating/domain"
	rlapp "extract-gateway/middleware/ratelimit/application"
	rldomain "extract-gateway/middleware/ratelimit/domain"

	"github.com/sirupsen/logrus"
)

type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (domain.Principal, error)
}

type Quota interface {
	CheckAndReserve(ctx context.Context, acc domain.Account) (application.QuotaStatus, error)
	Commit(ctx context.Context, acc domain.Account) (application.QuotaStatus, error)
}

type Options struct {
	Authenticator Authenticator
	Quota         Quota
	// RateLimiter é o limiter por conta (memória, Redis, token bucket).
	RateLimiter rldomain.Limiter
	Stats       rldomain.StatsStore
	Logger      logrus.FieldLogger

	// AddUsageHeaders escreve X-RateLimit-* e X-Quota-* nas respostas admitidas.
	AddUsageHeaders bool
	// Succeeded decide se a resposta do handler conta na quota (padrão: status < 400).
	Succeeded func(status int) bool
	// CommitTimeout limita o commit depois que o handler terminou.
	CommitTimeout time.Duration
}

// Admission é o que o handler protegido recebe no contexto.
type Admission struct {
	Principal domain.Principal
	Quota     application.QuotaStatus
	Rate      rldomain.Decision
}

type Gate struct {
	opts Options
	rate rlapp.Service
	log  logrus.FieldLogger
}

func New(opts Options) *Gate {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Succeeded == nil {
		opts.Succeeded = func(status int) bool { return status < http.StatusBadRequest }
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = 5 * time.Second
	}
	return &Gate{
		opts: opts,
		rate: rlapp.Service{Limiter: opts.RateLimiter},
		log:  opts.Logger,
	}
}

// Admit roda autenticação, quota e rate limit, nessa ordem.
//
// Retorna erro do domínio (ver domain.Err*) quando a requisição deve ser
// rejeitada. Não faz commit: o chamador chama Commit depois do sucesso.
func (g *Gate) Admit(ctx context.Context, authorization string) (Admission, error) {
	if g.opts.Authenticator == nil || g.opts.Quota == nil {
		return Admission{}, domain.Infra("gate", errNotConfigured)
	}

	bearer, ok := domain.BearerToken(authorization)
	if !ok {
		return Admission{}, domain.ErrMalformedCredential
	}

	p, err := g.opts.Authenticator.Authenticate(ctx, bearer)
	if err != nil {
		return Admission{}, err
	}
	adm := Admission{Principal: p}

	adm.Quota, err = g.opts.Quota.CheckAndReserve(ctx, p.Account)
	if err != nil {
		return adm, err
	}

	dec, err := g.rate.Decide(ctx, bucketKey(p), adm.Quota.Limits.RequestsPerMinute)
	if err != nil {
		return adm, domain.Infra("gate.rate", err)
	}
	adm.Rate = dec
	if !dec.Allowed {
		return adm, &domain.RateLimitedError{Limit: dec.Limit, RetryAfter: dec.RetryAfter}
	}
	return adm, nil
}

// Commit consome uma unidade da quota. Usa um contexto sem cancelamento: o
// trabalho caro já foi feito, o cliente ter desconectado não muda isso.
func (g *Gate) Commit(ctx context.Context, adm Admission) (application.QuotaStatus, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opts.CommitTimeout)
	defer cancel()
	return g.opts.Quota.Commit(ctx, adm.Principal.Account)
}

// bucketKey separa o tráfego de chaves de teste do tráfego live da mesma conta.
func bucketKey(p domain.Principal) rldomain.Key {
	if p.IsTestKey {
		return rldomain.Key(p.Account.ID + ":test")
	}
	return rldomain.Key(p.Account.ID)
}

func (g *Gate) record(ctx context.Context, r *http.Request, adm Admission, outcome rldomain.Outcome) {
	if g.opts.Stats == nil {
		return
	}
	ev := rldomain.StatsEvent{
		Key:     rldomain.Key(adm.Principal.Account.ID),
		Outcome: outcome,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	}
	if err := g.opts.Stats.Record(ctx, ev); err != nil {
		g.log.WithError(err).Debug("gate stats record failed")
	}
}

func (g *Gate) commitAfter(r *http.Request, adm Admission, status int) {
	if !g.opts.Succeeded(status) {
		return
	}
	if _, err := g.Commit(r.Context(), adm); err != nil {
		// resposta já foi enviada; fica o alerta para reconciliar
		g.log.WithError(err).WithFields(logrus.Fields{
			"op":         "quota.commit",
			"account_id": adm.Principal.Account.ID,
			"key_id":     adm.Principal.KeyID,
		}).Error("quota commit failed after successful request")
	}
}
