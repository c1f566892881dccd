package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"extract-gateway/middleware/ratelimit/application"
	"extract-gateway/middleware/ratelimit/domain"

	"github.com/sirupsen/logrus"
)

type KeyFunc func(r *http.Request) string

// Options configura o limitador por cliente (IP) que roda antes da
// autenticação. Ele protege o store de chaves contra enxurrada de lixo; o
// limite por conta fica no gate.
type Options struct {
	Limiter             domain.Limiter
	LimitPerMinute      int
	KeyFn               KeyFunc
	TrustXForwardedFor  bool
	RejectStatus        int
	AddRateLimitHeaders bool
	Logger              logrus.FieldLogger
}

// ClientIPKeyFunc identifica o cliente pelo IP.
func ClientIPKeyFunc(trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Limiter == nil || opts.LimitPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ClientIPKeyFunc(opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	svc := application.Service{Limiter: opts.Limiter}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key("ip:" + opts.KeyFn(r))

			dec, err := svc.Decide(r.Context(), key, opts.LimitPerMinute)
			if err != nil {
				// flood guard é best-effort: o gate por conta continua fail-closed
				opts.Logger.WithError(err).WithField("key", key).Warn("client rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			if opts.AddRateLimitHeaders {
				SetDecisionHeaders(w.Header(), dec)
			}
			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter/time.Second)))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetDecisionHeaders escreve X-RateLimit-* a partir da decisão.
func SetDecisionHeaders(h http.Header, dec domain.Decision) {
	h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
	h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
	if !dec.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", formatInt64(dec.ResetAt.Unix()))
	}
}
