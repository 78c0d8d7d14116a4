// Command gateway é o gateway de borda: recebe /api/*, autentica, aplica o
// rate limit por cliente e repassa ao upstream configurado.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edge-gateway/middleware/auth"
	"edge-gateway/middleware/auth/jwtverify"
	"edge-gateway/middleware/gateway"
	"edge-gateway/middleware/headerpolicy"
	"edge-gateway/middleware/ratelimit"
	"edge-gateway/middleware/ratelimit/application"
	"edge-gateway/middleware/ratelimit/domain"
	"edge-gateway/middleware/ratelimit/infra"
	"edge-gateway/middleware/ratelimit/rpc"
	"edge-gateway/pkg/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	confPath := flag.String("c", "", "path to YAML config file (optional)")
	flag.Parse()

	logger.Init(slog.LevelInfo)

	cfg, err := loadConfig(*confPath)
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Format, logger.ParseLevel(cfg.Log.Level), os.Stderr)
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, log *slog.Logger) error {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	var limiter *application.Service
	if cfg.Rate.Enabled {
		router, closeRouter, err := newLimiterRouter(ctx, cfg)
		if err != nil {
			return err
		}
		closers = append(closers, closeRouter)
		limiter = &application.Service{Router: router, Config: cfg.Rate.Policy, Timeout: cfg.Rate.Timeout}
	}

	var stats domain.StatsStore
	if cfg.Stats.Enabled {
		s, closeStats, err := newStatsStore(ctx, cfg)
		if err != nil {
			return err
		}
		closers = append(closers, closeStats)
		stats = s
	}

	var policyOpts []headerpolicy.Option
	if cfg.ProxiedBy != "" {
		policyOpts = append(policyOpts, headerpolicy.WithProxiedBy(cfg.ProxiedBy))
	}

	p := gateway.New(gateway.Options{
		Settings: gateway.Settings{
			UpstreamURL:        cfg.Upstream.URL,
			UpstreamCredential: cfg.Upstream.Credential,
			CredentialHeader:   cfg.Upstream.CredentialHeader,
			AllowedOrigin:      cfg.AllowedOrigin,
			ForwardedProto:     cfg.Upstream.ForwardedProto,
			Auth: &auth.Config{
				RequireAuth: cfg.Auth.Required,
				Whitelist:   cfg.whitelist(),
				Verifier:    verifier,
			},
		},
		Policy:          headerpolicy.New(policyOpts...),
		Limiter:         limiter,
		KeyHeaders:      cfg.keyHeaders(),
		Stats:           stats,
		UpstreamTimeout: cfg.Upstream.Timeout,
		Logger:          log,
	})
	if err := p.ConfigError(); err != nil {
		log.Warn("gateway configuration incomplete, /api requests will fail", "err", err)
	}

	h := ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.Concurrency.Timeout,
		Logger:         log,
	})(gateway.NewRouter(p))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Upstream.Timeout + 5*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	log.Info("gateway listening",
		"addr", cfg.ListenAddr,
		"upstream", cfg.Upstream.URL,
		"auth_verifier", verifier != nil,
		"auth_required", cfg.Auth.Required,
		"rate_enabled", cfg.Rate.Enabled,
		"rate_backend", cfg.Rate.Backend,
		"rate_window_ms", cfg.Rate.Policy.WindowSizeMs,
		"rate_max", cfg.Rate.Policy.MaxRequests,
		"stats_enabled", cfg.Stats.Enabled,
		"concurrency_max", cfg.Concurrency.Max,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newVerifier devolve nil quando não há chave configurada; nesse caso a
// autenticação fica desligada.
func newVerifier(cfg config) (auth.Verifier, error) {
	opts := jwtverify.Options{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}
	if cfg.Auth.PublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.Auth.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read AUTH_JWT_PUBLIC_KEY_FILE: %w", err)
		}
		opts.PublicKeyPEM = pem
	}
	if len(opts.Secret) == 0 && len(opts.PublicKeyPEM) == 0 {
		return nil, nil
	}

	v, err := jwtverify.New(opts)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func newLimiterRouter(ctx context.Context, cfg config) (domain.Router, func() error, error) {
	switch cfg.Rate.Backend {
	case backendRedis:
		rdb, err := newRedis(ctx, cfg.Rate.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("rate limit redis: %w", err)
		}
		return infra.NewRedisWindowStore(rdb, infra.WithWindowPrefix(cfg.Rate.Redis.Prefix)), rdb.Close, nil
	case backendRemote:
		c, err := rpc.NewClient(cfg.Rate.RemoteURL, rpc.WithTimeout(cfg.Rate.Timeout))
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	default:
		store := infra.NewWindowStore()
		return store, store.Close, nil
	}
}

func newStatsStore(ctx context.Context, cfg config) (domain.StatsStore, func() error, error) {
	if cfg.Stats.Backend != backendRedis {
		return infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys)), func() error { return nil }, nil
	}

	rdb, err := newRedis(ctx, cfg.Stats.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("rate stats redis: %w", err)
	}
	s := infra.NewRedisStatsStore(
		rdb,
		infra.WithStatsPrefix(cfg.Stats.Redis.Prefix),
		infra.WithStatsTTL(cfg.Stats.TTL),
		infra.WithStatsBucket(cfg.Stats.Bucket),
		infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
	)
	return s, rdb.Close, nil
}

func newRedis(ctx context.Context, rc redisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping %s: %w", rc.Addr, err)
	}
	return rdb, nil
}
