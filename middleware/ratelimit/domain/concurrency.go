package domain

import "context"

// SlotPool limita quantas extrações rodam ao mesmo tempo no upstream.
// Acquire espera uma vaga até o ctx acabar; ok=false quer dizer que não
// conseguiu. O release pode ser chamado mais de uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

// SlotGauge é a ocupação atual de um SlotPool.
type SlotGauge interface {
	InUse() int
	Cap() int
}
