package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, RateMemory, cfg.RateBackend)
	assert.Equal(t, 100, cfg.ConcurrencyMax)
	assert.Equal(t, time.Minute, cfg.JanitorInterval)
	assert.Equal(t, 5*time.Second, cfg.CommitTimeout)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.True(t, cfg.GateHeaders)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("RATE_BACKEND", "token")
	t.Setenv("UPSTREAM_URL", "http://extract:9000")
	t.Setenv("COMMIT_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, RateToken, cfg.RateBackend)
	assert.Equal(t, 2*time.Second, cfg.CommitTimeout)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GATE_TEST_LISTEN=:9999\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("GATE_TEST_LISTEN") })

	_, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", os.Getenv("GATE_TEST_LISTEN"))
}

func TestValidate(t *testing.T) {
	cases := map[string]map[string]any{
		"unknown store":      {"STORE_BACKEND": "mongo"},
		"unknown rate":       {"RATE_BACKEND": "leaky"},
		"postgres no dsn":    {"STORE_BACKEND": "postgres"},
		"redis no addr":      {"RATE_BACKEND": "redis"},
		"stats no addr":      {"STATS_ENABLED": true},
		"relative upstream":  {"UPSTREAM_URL": "extract:9000/v1"},
		"negative conc":      {"CONCURRENCY_MAX": -1},
		"bad log format":     {"LOG_FORMAT": "xml"},
		"zero commit window": {"COMMIT_TIMEOUT": "0s"},
	}
	for name, set := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			defaults(v)
			for k, val := range set {
				v.Set(k, val)
			}
			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.LogLevel = "debug"
	cfg.LogFile = filepath.Join(t.TempDir(), "gateway.log")

	log, closer, err := cfg.NewLogger()
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	log.Info("hello")

	raw, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello"`)

	cfg.LogLevel = "loud"
	_, _, err = cfg.NewLogger()
	assert.Error(t, err)
}
