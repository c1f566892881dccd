package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"extract-gateway/app"
	"extract-gateway/config"
	"extract-gateway/middleware/ratelimit"
	rldomain "extract-gateway/middleware/ratelimit/domain"
	rlinfra "extract-gateway/middleware/ratelimit/infra"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	if cfg.UpstreamURL == "" {
		logrus.Fatal("UPSTREAM_URL is required")
	}

	log, logCloser, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}
	defer func() { _ = logCloser.Close() }()

	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithError(err).WithField("path", r.URL.Path).Warn("proxy error")
		// 502 não conta na quota
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalf("wire: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()
	a.Start(ctx)

	var pool *rlinfra.ChanPool
	if cfg.ConcurrencyMax > 0 {
		pool = rlinfra.NewChanPool(cfg.ConcurrencyMax)
	}

	// ordem: flood guard por IP -> concorrência -> gate por conta -> upstream
	h := a.Gate().Middleware(proxy)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Pool:           slotPool(pool),
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.ConcurrencyTimeout,
		Logger:         log,
	})(h)
	h = ratelimit.Middleware(ratelimit.Options{
		Limiter:            a.IPLimiter,
		LimitPerMinute:     cfg.IPRatePerMinute,
		TrustXForwardedFor: cfg.TrustXFF,
		Logger:             log,
	})(h)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]int{}
		if pool != nil {
			body["in_use"], body["max"] = pool.InUse(), pool.Cap()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.Handle("/", h)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{
		"listen":   cfg.ListenAddr,
		"upstream": target.String(),
		"store":    cfg.StoreBackend,
		"rate":     cfg.RateBackend,
		"stats":    cfg.StatsEnabled,
	}).Info("gateway listening")
	log.WithFields(logrus.Fields{
		"max":             cfg.ConcurrencyMax,
		"acquire_timeout": cfg.ConcurrencyTimeout,
		"ip_per_minute":   cfg.IPRatePerMinute,
		"trust_xff":       cfg.TrustXFF,
	}).Info("admission limits")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("server error: %v", err)
		os.Exit(1)
	}
}

// slotPool evita guardar um *ChanPool nil dentro da interface.
func slotPool(p *rlinfra.ChanPool) rldomain.SlotPool {
	if p == nil {
		return nil
	}
	return p
}
