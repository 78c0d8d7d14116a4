package ratelimit

import (
	"net/http"
	"time"

	"edge-gateway/middleware/envelope"
	"edge-gateway/middleware/ratelimit/application"
	"edge-gateway/middleware/ratelimit/infra"
	"edge-gateway/pkg/logger"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	Logger         logger.Sink
}

// ConcurrencyMiddleware limita requisições simultâneas. Sem vaga dentro de
// AcquireTimeout responde RejectStatus (503) com envelope de erro.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				opts.Logger.Warn("concurrency slot unavailable", "method", r.Method, "path", r.URL.Path, "err", err)
				_ = envelope.WriteError(w, opts.RejectStatus, "Service temporarily overloaded")
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
