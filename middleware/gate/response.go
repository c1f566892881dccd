package gate

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"extract-gateway/gating/domain"
	rldomain "extract-gateway/middleware/ratelimit/domain"
)

var errNotConfigured = errors.New("gate without authenticator or quota tracker")

// ErrorBody é o corpo JSON de toda rejeição do gate.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code              rldomain.Outcome `json:"code"`
	Message           string           `json:"message"`
	RetryAfterSeconds int              `json:"retry_after_seconds,omitempty"`
	Usage             *int64           `json:"usage,omitempty"`
	Limit             *int64           `json:"limit,omitempty"`
	Tier              domain.Tier      `json:"tier,omitempty"`
	Period            string           `json:"period,omitempty"`
}

// Rejection é a forma HTTP de um erro do gate.
type Rejection struct {
	Status     int
	RetryAfter time.Duration
	Body       ErrorBody
}

// Classify mapeia um erro do gate para status e corpo. Erro desconhecido cai
// em 503: tudo que não é rejeição explícita é tratado como infraestrutura.
func Classify(err error) Rejection {
	var (
		qe *domain.QuotaExceededError
		re *domain.RateLimitedError
	)
	switch {
	case errors.Is(err, domain.ErrMalformedCredential):
		return reject(http.StatusUnauthorized, rldomain.OutcomeMalformed,
			"missing or malformed API key; send Authorization: Bearer sk_<live|test>_...")
	case errors.Is(err, domain.ErrUnauthenticated):
		return reject(http.StatusUnauthorized, rldomain.OutcomeUnauthenticated, "invalid API key")
	case errors.Is(err, domain.ErrForbidden):
		return reject(http.StatusForbidden, rldomain.OutcomeForbidden, "account is suspended")
	case errors.As(err, &qe):
		rj := reject(http.StatusTooManyRequests, rldomain.OutcomeQuotaExceeded, qe.Error())
		count, limit := qe.Count, qe.Limit
		rj.Body.Error.Usage = &count
		rj.Body.Error.Limit = &limit
		rj.Body.Error.Tier = qe.Tier
		rj.Body.Error.Period = string(qe.Period)
		rj.RetryAfter = untilWindowEnd(qe.Period, time.Now())
		rj.Body.Error.RetryAfterSeconds = seconds(rj.RetryAfter)
		return rj
	case errors.As(err, &re):
		rj := reject(http.StatusTooManyRequests, rldomain.OutcomeRateLimited, re.Error())
		limit := int64(re.Limit)
		rj.Body.Error.Limit = &limit
		rj.RetryAfter = re.RetryAfter
		rj.Body.Error.RetryAfterSeconds = seconds(re.RetryAfter)
		return rj
	default:
		return reject(http.StatusServiceUnavailable, rldomain.OutcomeUnavailable,
			"request gating is temporarily unavailable")
	}
}

func reject(status int, code rldomain.Outcome, msg string) Rejection {
	return Rejection{Status: status, Body: ErrorBody{Error: ErrorDetail{Code: code, Message: msg}}}
}

// untilWindowEnd é o tempo até a próxima virada da janela (UTC).
func untilWindowEnd(p domain.QuotaPeriod, now time.Time) time.Duration {
	now = now.UTC()
	var next time.Time
	if p == domain.PeriodDaily {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	} else {
		next = time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	}
	return next.Sub(now)
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if time.Duration(s)*time.Second < d {
		s++
	}
	return s
}

// Write escreve a rejeição. O handler protegido nunca roda depois disso.
func (rj Rejection) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	if rj.Status == http.StatusUnauthorized {
		h.Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	if rj.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(seconds(rj.RetryAfter)))
	}
	w.WriteHeader(rj.Status)
	_ = json.NewEncoder(w).Encode(rj.Body)
}

func setUsageHeaders(h http.Header, adm Admission) {
	h.Set("X-Quota-Used", strconv.FormatInt(adm.Quota.Monthly.Count, 10))
	if adm.Quota.Limits.MonthlyUnlimited() {
		h.Set("X-Quota-Limit", "unlimited")
	} else {
		h.Set("X-Quota-Limit", strconv.FormatInt(adm.Quota.Limits.MonthlyRequestLimit, 10))
	}
}
