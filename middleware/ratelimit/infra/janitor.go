package infra

import (
	"context"
	"sync"
	"time"
)

// Sweeper é qualquer store que sabe descartar estado velho.
type Sweeper interface {
	Cleanup()
}

// Janitor roda Cleanup periodicamente numa goroutine com ciclo de vida
// explícito: Start inicia (uma vez só), Stop para e espera a goroutine sair.
// Cancelar o ctx passado em Start também para.
type Janitor struct {
	sweeper Sweeper
	every   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewJanitor(s Sweeper, every time.Duration) *Janitor {
	return &Janitor{sweeper: s, every: every}
}

func (j *Janitor) Start(ctx context.Context) {
	if j.every <= 0 || j.sweeper == nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done != nil {
		return
	}

	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})

	t := time.NewTicker(j.every)
	go func(done chan struct{}) {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				j.sweeper.Cleanup()
			}
		}
	}(j.done)
}

func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
