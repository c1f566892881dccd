package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"extract-gateway/app"
	"extract-gateway/config"
	"extract-gateway/gating/domain"
	"extract-gateway/middleware/gate"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Exemplo: gate embutido direto num servidor gin (sem proxy), tudo em memória.
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	cfg.StoreBackend = config.StoreMemory
	cfg.RateBackend = config.RateMemory
	cfg.StatsEnabled = false

	log, logCloser, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}
	defer func() { _ = logCloser.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalf("wire: %v", err)
	}
	defer func() { _ = a.Close() }()
	a.Start(ctx)

	acc, err := a.Accounts.Create(ctx, "demo@example.com", domain.TierFree)
	if err != nil {
		log.Fatalf("seed account: %v", err)
	}
	live, err := a.Issuer.Issue(ctx, acc.ID, "demo", false)
	if err != nil {
		log.Fatalf("seed key: %v", err)
	}
	sandbox, err := a.Issuer.Issue(ctx, acc.ID, "demo-test", true)
	if err != nil {
		log.Fatalf("seed key: %v", err)
	}
	// único momento em que o texto da chave aparece
	log.WithFields(logrus.Fields{
		"account_id": acc.ID,
		"live_key":   live.Plaintext,
		"test_key":   sandbox.Plaintext,
	}).Info("seeded demo account")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/v1", a.Gate().Gin())
	api.POST("/extract", func(c *gin.Context) {
		adm, _ := gate.GinAdmission(c)
		c.JSON(http.StatusOK, gin.H{
			"fields": gin.H{"title": "example", "test_mode": adm.Principal.IsTestKey},
			"usage": gin.H{
				"tier":          adm.Quota.Tier,
				"monthly_used":  adm.Quota.Monthly.Count + 1,
				"monthly_limit": adm.Quota.Limits.MonthlyRequestLimit,
			},
		})
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("server error: %v", err)
		os.Exit(1)
	}
}
