package domain

import (
	"errors"
	"fmt"
	"time"
)

// Rejeições que o gate converte em resposta tipada.
var (
	ErrMalformedCredential = errors.New("malformed credential")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("account suspended")
	ErrQuotaExceeded       = errors.New("quota exceeded")
	ErrRateLimited         = errors.New("rate limited")
	ErrInfrastructure      = errors.New("gating infrastructure failure")
)

// Erros de configuração e de store.
var (
	ErrUnknownTier       = errors.New("unknown tier")
	ErrInvalidTierConfig = errors.New("invalid tier config")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrAccountNotFound   = fmt.Errorf("account %w", ErrNotFound)
	ErrKeyNotFound       = fmt.Errorf("api key %w", ErrNotFound)
)

type QuotaPeriod string

const (
	PeriodMonthly QuotaPeriod = "monthly"
	PeriodDaily   QuotaPeriod = "daily"
)

// QuotaExceededError carrega uso e limite para o cliente decidir entre
// fazer upgrade ou esperar.
type QuotaExceededError struct {
	Period QuotaPeriod
	Count  int64
	Limit  int64
	Tier   Tier
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %d/%d (tier %s)", e.Period, e.Count, e.Limit, e.Tier)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

type RateLimitedError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %d requests per minute, retry after %s", e.Limit, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// InfrastructureError embrulha falhas de store/transação. O gate sempre
// rejeita (fail-closed) e loga Err; o cliente nunca vê Err.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() []error { return []error{ErrInfrastructure, e.Err} }

func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *InfrastructureError
	if errors.As(err, &ie) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}
