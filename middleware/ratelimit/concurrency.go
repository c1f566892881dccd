package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"extract-gateway/middleware/ratelimit/application"
	"extract-gateway/middleware/ratelimit/domain"
	"extract-gateway/middleware/ratelimit/infra"

	"github.com/sirupsen/logrus"
)

// ConcurrencyOptions limita quantas chamadas simultâneas chegam ao serviço
// de extração (cada uma segura duas chamadas ao LLM).
type ConcurrencyOptions struct {
	Max int
	// Pool substitui o semáforo interno de Max vagas (ex: para expor a
	// ocupação no /healthz).
	Pool           domain.SlotPool
	RejectStatus   int
	AcquireTimeout time.Duration
	RetryAfter     time.Duration
	Logger         logrus.FieldLogger
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		if opts.Max <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		opts.Pool = infra.NewChanPool(opts.Max)
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if errors.Is(err, application.ErrSaturated) {
				entry := opts.Logger.WithField("path", r.URL.Path)
				if g, ok := opts.Pool.(domain.SlotGauge); ok {
					entry = entry.WithFields(logrus.Fields{"in_use": g.InUse(), "max": g.Cap()})
				}
				entry.Warn("concurrency limit saturated")
				w.Header().Set("Retry-After", formatInt(int(opts.RetryAfter/time.Second)))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			if err != nil {
				// cliente desistiu enquanto esperava
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
