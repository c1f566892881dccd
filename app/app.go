// Package app monta os componentes do gate a partir da Config. Os três
// binários (gateway, gatectl, example-server) passam por aqui.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"extract-gateway/config"
	"extract-gateway/gating/application"
	"extract-gateway/gating/domain"
	"extract-gateway/gating/infra"
	"extract-gateway/middleware/gate"
	rldomain "extract-gateway/middleware/ratelimit/domain"
	rlinfra "extract-gateway/middleware/ratelimit/infra"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config config.Config
	Log    logrus.FieldLogger

	Store    domain.Store
	Tiers    domain.Tiers
	Hasher   domain.Hasher
	Accounts application.AccountService
	Issuer   application.KeyIssuer
	Quota    application.QuotaTracker
	Auth     *application.Authenticator
	Recorder *application.UsageRecorder

	// Limiter é o limite por conta; IPLimiter o flood guard (sempre em memória
	// ou Redis, nunca token bucket).
	Limiter   rldomain.Limiter
	IPLimiter rldomain.Limiter
	Stats     rldomain.StatsStore

	janitors []*rlinfra.Janitor
	closers  []func() error
}

// Open conecta os backends configurados. Em erro, o que já foi aberto é
// fechado antes de retornar.
func Open(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*App, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &App{Config: cfg, Log: log}
	if err := a.open(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context) error {
	cfg := a.Config

	tiers, err := infra.LoadTiersFile(cfg.TiersFile)
	if err != nil {
		return err
	}
	a.Tiers = tiers

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, rdb.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	switch cfg.StoreBackend {
	case config.StoreRedis:
		a.Store = infra.NewRedisStore(rdb, infra.WithStorePrefix(cfg.RedisPrefix))
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		pg := infra.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
		a.Store = pg
	default:
		a.Store = infra.NewMemoryStore()
	}

	switch cfg.RateBackend {
	case config.RateRedis:
		a.Limiter = rlinfra.NewRedisWindowStore(rdb, rlinfra.WithWindowPrefix(cfg.RedisPrefix+":ratelimit"))
		a.IPLimiter = rlinfra.NewRedisWindowStore(rdb, rlinfra.WithWindowPrefix(cfg.RedisPrefix+":ipguard"))
	case config.RateToken:
		tb := rlinfra.NewTokenBucketStore()
		a.Limiter = tb
		a.addJanitor(tb)
		a.IPLimiter = a.memoryWindow()
	default:
		a.Limiter = a.memoryWindow()
		a.IPLimiter = a.memoryWindow()
	}

	if cfg.StatsEnabled {
		a.Stats = rlinfra.NewRedisStatsStore(
			rdb,
			rlinfra.WithStatsPrefix(cfg.StatsPrefix),
			rlinfra.WithStatsTTL(cfg.StatsTTL),
			rlinfra.WithStatsTrackKeys(cfg.StatsTrackKeys),
		)
	}

	a.Hasher = infra.NewBcryptHasher(cfg.BcryptCost)
	a.Recorder = application.NewUsageRecorder(a.Store, cfg.TouchQueue, a.Log, nil)
	a.Accounts = application.AccountService{Accounts: a.Store, Tiers: a.Tiers}
	a.Issuer = application.KeyIssuer{Accounts: a.Store, Keys: a.Store, Hasher: a.Hasher}
	a.Quota = application.QuotaTracker{Accounts: a.Store, Tiers: a.Tiers}
	a.Auth = &application.Authenticator{
		Accounts: a.Store,
		Keys:     a.Store,
		Hasher:   a.Hasher,
		Recorder: a.Recorder,
		Logger:   a.Log,
	}
	if err := a.Auth.Warm(); err != nil {
		return err
	}
	return nil
}

func (a *App) memoryWindow() *rlinfra.FixedWindowStore {
	s := rlinfra.NewFixedWindowStore()
	a.addJanitor(s)
	return s
}

func (a *App) addJanitor(s rlinfra.Sweeper) {
	a.janitors = append(a.janitors, rlinfra.NewJanitor(s, a.Config.JanitorInterval))
}

// Gate monta o middleware por conta com os componentes do App.
func (a *App) Gate() *gate.Gate {
	return gate.New(gate.Options{
		Authenticator:   a.Auth,
		Quota:           a.Quota,
		RateLimiter:     a.Limiter,
		Stats:           a.Stats,
		Logger:          a.Log,
		AddUsageHeaders: a.Config.GateHeaders,
		CommitTimeout:   a.Config.CommitTimeout,
	})
}

// Start sobe as goroutines de fundo (janitors e o recorder de last_used_at).
func (a *App) Start(ctx context.Context) {
	for _, j := range a.janitors {
		j.Start(ctx)
	}
	a.Recorder.Start(ctx)
}

// Close para as goroutines de fundo, drena o recorder e fecha conexões.
func (a *App) Close() error {
	for _, j := range a.janitors {
		j.Stop()
	}
	if a.Recorder != nil {
		a.Recorder.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
