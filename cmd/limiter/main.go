// Command limiter expõe o WindowStore por HTTP (POST /check/{key}) para
// gateways que usam RATE_LIMIT_BACKEND=remote.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"edge-gateway/middleware/ratelimit/domain"
	"edge-gateway/middleware/ratelimit/infra"
	"edge-gateway/middleware/ratelimit/rpc"
	"edge-gateway/pkg/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	log := logger.New(os.Getenv("LOG_FORMAT"), logger.ParseLevel(os.Getenv("LOG_LEVEL")), os.Stderr)
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log); err != nil {
		log.Error("limiter stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	addr := getenvDefault("LISTEN_ADDR", ":8090")
	backend := getenvDefault("LIMITER_BACKEND", "memory")

	var router domain.Router
	switch backend {
	case "memory":
		store := infra.NewWindowStore(
			infra.WithIdleTTL(getenvDurationDefault("LIMITER_IDLE_TTL", time.Minute)),
			infra.WithCleanupEvery(getenvDurationDefault("LIMITER_CLEANUP_EVERY", time.Minute)),
		)
		defer func() { _ = store.Close() }()
		router = store
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     os.Getenv("LIMITER_REDIS_ADDR"),
			Password: os.Getenv("LIMITER_REDIS_PASSWORD"),
			DB:       getenvIntDefault("LIMITER_REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancelPing()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		router = infra.NewRedisWindowStore(rdb, infra.WithWindowPrefix(getenvDefault("LIMITER_REDIS_PREFIX", "ratelimit:window")))
	default:
		return fmt.Errorf("unknown LIMITER_BACKEND %q", backend)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           rpc.NewServer(router, log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	log.Info("limiter listening", "addr", addr, "backend", backend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	i, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return i
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
