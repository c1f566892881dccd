// Package config lê a configuração dos binários a partir do ambiente
// (opcionalmente de um .env) e valida antes de subir qualquer coisa.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	RateMemory = "memory"
	RateRedis  = "redis"
	RateToken  = "token"
)

type Config struct {
	ListenAddr  string
	UpstreamURL string

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	// flood guard por IP, antes da autenticação
	IPRatePerMinute int
	TrustXFF        bool

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	PostgresDSN   string

	RateBackend     string
	JanitorInterval time.Duration

	TiersFile  string
	BcryptCost int

	GateHeaders   bool
	CommitTimeout time.Duration
	TouchQueue    int

	StatsEnabled   bool
	StatsPrefix    string
	StatsTTL       time.Duration
	StatsTrackKeys bool

	LogLevel  string
	LogFormat string
	LogFile   string
}

func defaults(v *viper.Viper) {
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("CONCURRENCY_MAX", 100)
	v.SetDefault("CONCURRENCY_TIMEOUT", "0s")
	v.SetDefault("IP_RATE_PER_MINUTE", 0)
	v.SetDefault("TRUST_XFF", false)
	v.SetDefault("STORE_BACKEND", StoreMemory)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "gate")
	v.SetDefault("RATE_BACKEND", RateMemory)
	v.SetDefault("JANITOR_INTERVAL", "1m")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("GATE_HEADERS", true)
	v.SetDefault("COMMIT_TIMEOUT", "5s")
	v.SetDefault("TOUCH_QUEUE", 1024)
	v.SetDefault("STATS_ENABLED", false)
	v.SetDefault("STATS_PREFIX", "gate:stats")
	v.SetDefault("STATS_TTL", "24h")
	v.SetDefault("STATS_TRACK_KEYS", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load carrega os arquivos .env informados (os que não existem são
// ignorados), depois lê o ambiente. Variáveis já definidas no processo
// ganham do .env.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)
	return FromViper(v)
}

// FromViper monta a Config a partir de um viper já preenchido.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		ListenAddr:         v.GetString("LISTEN_ADDR"),
		UpstreamURL:        v.GetString("UPSTREAM_URL"),
		ConcurrencyMax:     v.GetInt("CONCURRENCY_MAX"),
		ConcurrencyTimeout: v.GetDuration("CONCURRENCY_TIMEOUT"),
		IPRatePerMinute:    v.GetInt("IP_RATE_PER_MINUTE"),
		TrustXFF:           v.GetBool("TRUST_XFF"),
		StoreBackend:       strings.ToLower(v.GetString("STORE_BACKEND")),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		RedisPrefix:        v.GetString("REDIS_PREFIX"),
		PostgresDSN:        v.GetString("POSTGRES_DSN"),
		RateBackend:        strings.ToLower(v.GetString("RATE_BACKEND")),
		JanitorInterval:    v.GetDuration("JANITOR_INTERVAL"),
		TiersFile:          v.GetString("TIERS_FILE"),
		BcryptCost:         v.GetInt("BCRYPT_COST"),
		GateHeaders:        v.GetBool("GATE_HEADERS"),
		CommitTimeout:      v.GetDuration("COMMIT_TIMEOUT"),
		TouchQueue:         v.GetInt("TOUCH_QUEUE"),
		StatsEnabled:       v.GetBool("STATS_ENABLED"),
		StatsPrefix:        v.GetString("STATS_PREFIX"),
		StatsTTL:           v.GetDuration("STATS_TTL"),
		StatsTrackKeys:     v.GetBool("STATS_TRACK_KEYS"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          strings.ToLower(v.GetString("LOG_FORMAT")),
		LogFile:            v.GetString("LOG_FILE"),
	}
	return cfg, cfg.Validate()
}

// NeedsRedis indica se algum componente configurado usa Redis.
func (c Config) NeedsRedis() bool {
	return c.StoreBackend == StoreRedis || c.RateBackend == RateRedis || c.StatsEnabled
}

func (c Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when STORE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be memory, redis or postgres, got %q", c.StoreBackend))
	}

	switch c.RateBackend {
	case RateMemory, RateRedis, RateToken:
	default:
		errs = append(errs, fmt.Errorf("RATE_BACKEND must be memory, redis or token, got %q", c.RateBackend))
	}

	if c.NeedsRedis() && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for the configured redis backends"))
	}
	if c.UpstreamURL != "" {
		if u, err := url.Parse(c.UpstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("UPSTREAM_URL is not an absolute URL: %q", c.UpstreamURL))
		}
	}
	if c.ConcurrencyMax < 0 {
		errs = append(errs, errors.New("CONCURRENCY_MAX must be >= 0"))
	}
	if c.IPRatePerMinute < 0 {
		errs = append(errs, errors.New("IP_RATE_PER_MINUTE must be >= 0"))
	}
	if c.JanitorInterval <= 0 {
		errs = append(errs, errors.New("JANITOR_INTERVAL must be > 0"))
	}
	if c.CommitTimeout <= 0 {
		errs = append(errs, errors.New("COMMIT_TIMEOUT must be > 0"))
	}
	if c.TouchQueue <= 0 {
		errs = append(errs, errors.New("TOUCH_QUEUE must be > 0"))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}
