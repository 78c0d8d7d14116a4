package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"edge-gateway/middleware/auth"
	"edge-gateway/middleware/ratelimit"
	"edge-gateway/middleware/ratelimit/domain"

	"gopkg.in/yaml.v3"
)

// config é lida do YAML opcional (-c) e depois sobreposta pelas variáveis
// de ambiente. Campos do upstream ausentes não impedem o boot: o pipeline
// responde 500 por requisição.
type config struct {
	ListenAddr string `yaml:"listenAddr"`

	Upstream struct {
		URL              string        `yaml:"url"`
		Credential       string        `yaml:"credential"`
		CredentialHeader string        `yaml:"credentialHeader"`
		Timeout          time.Duration `yaml:"timeout"`
		ForwardedProto   string        `yaml:"forwardedProto"`
	} `yaml:"upstream"`

	AllowedOrigin string `yaml:"allowedOrigin"`
	ProxiedBy     string `yaml:"proxiedBy"`

	Auth struct {
		Required      bool     `yaml:"required"`
		JWTSecret     string   `yaml:"jwtSecret"`
		PublicKeyFile string   `yaml:"publicKeyFile"`
		Issuer        string   `yaml:"issuer"`
		Audience      string   `yaml:"audience"`
		Whitelist     []string `yaml:"whitelist"`
	} `yaml:"auth"`

	Rate struct {
		Enabled    bool          `yaml:"enabled"`
		Policy     domain.Config `yaml:"policy"`
		Backend    string        `yaml:"backend"`
		Timeout    time.Duration `yaml:"timeout"`
		KeyHeaders []string      `yaml:"keyHeaders"`
		Redis      redisConfig   `yaml:"redis"`
		RemoteURL  string        `yaml:"remoteURL"`
	} `yaml:"rate"`

	Stats struct {
		Enabled   bool          `yaml:"enabled"`
		Backend   string        `yaml:"backend"`
		Redis     redisConfig   `yaml:"redis"`
		TTL       time.Duration `yaml:"ttl"`
		Bucket    string        `yaml:"bucket"`
		TrackKeys bool          `yaml:"trackKeys"`
	} `yaml:"stats"`

	Concurrency struct {
		Max     int           `yaml:"max"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"concurrency"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

type redisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

const (
	backendMemory = "memory"
	backendRedis  = "redis"
	backendRemote = "remote"
)

func defaultConfig() config {
	var cfg config
	cfg.ListenAddr = ":8080"
	cfg.Upstream.Timeout = 30 * time.Second
	cfg.Auth.Required = true
	cfg.Rate.Enabled = true
	cfg.Rate.Policy = domain.DefaultConfig()
	cfg.Rate.Backend = backendMemory
	cfg.Rate.Timeout = 250 * time.Millisecond
	cfg.Rate.Redis.Prefix = "ratelimit:window"
	cfg.Stats.Backend = backendMemory
	cfg.Stats.Redis.Prefix = "ratelimit:stats"
	cfg.Stats.TTL = 24 * time.Hour
	cfg.Stats.Bucket = "minute"
	cfg.Concurrency.Max = 100
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// loadConfig monta a configuração: padrões, YAML (se path != "") e env.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
			return config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *config) {
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", cfg.ListenAddr)

	cfg.Upstream.URL = getenvDefault("API_SERVICE_URL", cfg.Upstream.URL)
	cfg.Upstream.Credential = getenvDefault("API_KEY", cfg.Upstream.Credential)
	cfg.Upstream.CredentialHeader = getenvDefault("API_KEY_HEADER", cfg.Upstream.CredentialHeader)
	cfg.Upstream.Timeout = getenvDurationDefault("UPSTREAM_TIMEOUT", cfg.Upstream.Timeout)
	cfg.Upstream.ForwardedProto = getenvDefault("FORWARDED_PROTO", cfg.Upstream.ForwardedProto)
	cfg.AllowedOrigin = getenvDefault("ALLOWED_ORIGIN", cfg.AllowedOrigin)
	cfg.ProxiedBy = getenvDefault("PROXIED_BY", cfg.ProxiedBy)

	// qualquer valor diferente de "false" exige autenticação
	if v, ok := os.LookupEnv("AUTH_REQUIRED"); ok && v != "" {
		cfg.Auth.Required = v != "false"
	}
	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.PublicKeyFile = getenvDefault("AUTH_JWT_PUBLIC_KEY_FILE", cfg.Auth.PublicKeyFile)
	cfg.Auth.Issuer = getenvDefault("AUTH_ISSUER", cfg.Auth.Issuer)
	cfg.Auth.Audience = getenvDefault("AUTH_AUDIENCE", cfg.Auth.Audience)
	cfg.Auth.Whitelist = getenvListDefault("AUTH_WHITELIST", cfg.Auth.Whitelist)

	cfg.Rate.Enabled = getenvBoolDefault("RATE_ENABLED", cfg.Rate.Enabled)
	cfg.Rate.Policy.WindowSizeMs = getenvInt64Default("RATE_WINDOW_MS", cfg.Rate.Policy.WindowSizeMs)
	cfg.Rate.Policy.MaxRequests = getenvIntDefault("RATE_MAX_REQUESTS", cfg.Rate.Policy.MaxRequests)
	cfg.Rate.Policy.WarningThreshold = getenvIntDefault("RATE_WARNING_THRESHOLD", cfg.Rate.Policy.WarningThreshold)
	cfg.Rate.Backend = strings.ToLower(getenvDefault("RATE_LIMIT_BACKEND", cfg.Rate.Backend))
	cfg.Rate.Timeout = getenvDurationDefault("RATE_LIMIT_TIMEOUT", cfg.Rate.Timeout)
	cfg.Rate.KeyHeaders = getenvListDefault("RATE_KEY_HEADERS", cfg.Rate.KeyHeaders)
	cfg.Rate.Redis = redisFromEnv("RATE_REDIS_", cfg.Rate.Redis)
	cfg.Rate.RemoteURL = getenvDefault("RATE_REMOTE_URL", cfg.Rate.RemoteURL)

	cfg.Stats.Enabled = getenvBoolDefault("RATE_STATS_ENABLED", cfg.Stats.Enabled)
	cfg.Stats.Backend = strings.ToLower(getenvDefault("RATE_STATS_BACKEND", cfg.Stats.Backend))
	cfg.Stats.Redis = redisFromEnv("RATE_STATS_REDIS_", cfg.Stats.Redis)
	cfg.Stats.Redis.Prefix = getenvDefault("RATE_STATS_PREFIX", cfg.Stats.Redis.Prefix)
	cfg.Stats.TTL = getenvDurationDefault("RATE_STATS_TTL", cfg.Stats.TTL)
	cfg.Stats.Bucket = getenvDefault("RATE_STATS_BUCKET", cfg.Stats.Bucket)
	cfg.Stats.TrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", cfg.Stats.TrackKeys)

	cfg.Concurrency.Max = getenvIntDefault("CONCURRENCY_MAX", cfg.Concurrency.Max)
	cfg.Concurrency.Timeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", cfg.Concurrency.Timeout)

	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenvDefault("LOG_FORMAT", cfg.Log.Format)
}

func redisFromEnv(prefix string, def redisConfig) redisConfig {
	return redisConfig{
		Addr:     getenvDefault(prefix+"ADDR", def.Addr),
		Password: getenvDefault(prefix+"PASSWORD", def.Password),
		DB:       getenvIntDefault(prefix+"DB", def.DB),
		Prefix:   getenvDefault(prefix+"PREFIX", def.Prefix),
	}
}

func (cfg config) validate() error {
	if cfg.Rate.Enabled {
		if err := cfg.Rate.Policy.Validate(); err != nil {
			return err
		}
		switch cfg.Rate.Backend {
		case backendMemory:
		case backendRedis:
			if strings.TrimSpace(cfg.Rate.Redis.Addr) == "" {
				return errors.New("RATE_REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
			}
		case backendRemote:
			if strings.TrimSpace(cfg.Rate.RemoteURL) == "" {
				return errors.New("RATE_REMOTE_URL is required when RATE_LIMIT_BACKEND=remote")
			}
		default:
			return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", cfg.Rate.Backend)
		}
	}
	if cfg.Stats.Enabled {
		switch cfg.Stats.Backend {
		case backendMemory:
		case backendRedis:
			if strings.TrimSpace(cfg.Stats.Redis.Addr) == "" {
				return errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_BACKEND=redis")
			}
		default:
			return fmt.Errorf("unknown RATE_STATS_BACKEND %q", cfg.Stats.Backend)
		}
	}
	if cfg.Concurrency.Max < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.Upstream.Timeout <= 0 {
		return errors.New("UPSTREAM_TIMEOUT must be > 0")
	}
	return nil
}

// whitelist devolve a lista configurada ou a padrão.
func (cfg config) whitelist() []string {
	if len(cfg.Auth.Whitelist) == 0 {
		return auth.DefaultWhitelist
	}
	return cfg.Auth.Whitelist
}

func (cfg config) keyHeaders() []string {
	if len(cfg.Rate.KeyHeaders) == 0 {
		return ratelimit.DefaultKeyHeaders
	}
	return cfg.Rate.KeyHeaders
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt64Default(k string, def int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// getenvListDefault lê uma lista separada por vírgulas.
func getenvListDefault(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
