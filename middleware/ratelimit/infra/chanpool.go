package infra

import (
	"context"
	"sync"
)

// ChanPool é um semáforo baseado em channel com capacidade fixa.
type ChanPool struct {
	sem chan struct{}
}

// NewChanPool cria um pool com capacidade `max`.
func NewChanPool(max int) *ChanPool {
	return &ChanPool{sem: make(chan struct{}, max)}
}

// Acquire implementa domain.SlotPool. O release é idempotente.
func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.sem }) }, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *ChanPool) InUse() int { return len(p.sem) }
func (p *ChanPool) Cap() int   { return cap(p.sem) }
