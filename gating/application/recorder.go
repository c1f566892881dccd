package application

import (
	"context"
	"sync"
	"time"

	"extract-gateway/gating/domain"

	"github.com/sirupsen/logrus"
)

// UsageRecorder grava lastUsedAt fora do caminho da requisição.
//
// Touch nunca bloqueia: com a fila cheia o toque é descartado (é telemetria,
// não correção). Run consome a fila até o ctx acabar; Stop espera esvaziar.
type UsageRecorder struct {
	keys   domain.KeyStore
	clock  Clock
	log    logrus.FieldLogger
	queue  chan touch
	wg     sync.WaitGroup
	once   sync.Once
	closed chan struct{}
}

type touch struct {
	keyID string
	at    time.Time
}

func NewUsageRecorder(keys domain.KeyStore, queueSize int, log logrus.FieldLogger, clock Clock) *UsageRecorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &UsageRecorder{
		keys:   keys,
		clock:  clock,
		log:    log,
		queue:  make(chan touch, queueSize),
		closed: make(chan struct{}),
	}
}

func (r *UsageRecorder) Touch(keyID string) {
	select {
	case <-r.closed:
		return
	default:
	}
	select {
	case r.queue <- touch{keyID: keyID, at: r.clock.now()}:
	default:
		r.log.WithField("key_id", keyID).Debug("last-used queue full, dropping")
	}
}

// Start sobe o consumidor numa goroutine.
func (r *UsageRecorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Run(ctx)
	}()
}

// Run processa toques até ctx cancelar ou Stop; então drena o que sobrou.
func (r *UsageRecorder) Run(ctx context.Context) {
	for {
		select {
		case t := <-r.queue:
			r.record(ctx, t)
		case <-ctx.Done():
			r.drain(context.Background())
			return
		case <-r.closed:
			r.drain(ctx)
			return
		}
	}
}

// Stop fecha a entrada e espera o consumidor iniciado por Start terminar.
func (r *UsageRecorder) Stop() {
	r.once.Do(func() { close(r.closed) })
	r.wg.Wait()
}

func (r *UsageRecorder) drain(ctx context.Context) {
	for {
		select {
		case t := <-r.queue:
			r.record(ctx, t)
		default:
			return
		}
	}
}

func (r *UsageRecorder) record(ctx context.Context, t touch) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := r.keys.UpdateKey(ctx, t.keyID, func(k *domain.APIKey) (bool, error) {
		if k.LastUsedAt != nil && !t.at.After(*k.LastUsedAt) {
			return false, nil
		}
		at := t.at
		k.LastUsedAt = &at
		return true, nil
	})
	if err != nil {
		r.log.WithError(err).WithField("key_id", t.keyID).Warn("failed to record key last-used time")
	}
}
