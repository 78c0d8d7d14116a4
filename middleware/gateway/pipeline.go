// Package gateway orquestra uma requisição /api: configuração, preflight,
// autenticação, rate limit, encaminhamento ao upstream e normalização da
// resposta. Todas as falhas passam por StatusOf.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"time"

	"edge-gateway/middleware/auth"
	"edge-gateway/middleware/envelope"
	"edge-gateway/middleware/headerpolicy"
	"edge-gateway/middleware/ratelimit"
	"edge-gateway/middleware/ratelimit/application"
	"edge-gateway/middleware/ratelimit/domain"
	"edge-gateway/pkg/logger"

	"golang.org/x/time/rate"
)

const (
	DefaultStripPrefix     = "/api"
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultMaxJSONBody     = 10 << 20
)

type Options struct {
	Settings Settings
	Policy   *headerpolicy.Policy

	// Limiter nil desliga o rate limit.
	Limiter *application.Service
	// KeyHeaders define a ordem dos headers de IP do cliente, usada na chave
	// do limiter e no X-Forwarded-For enviado ao upstream.
	KeyHeaders []string
	KeyFn      ratelimit.KeyFunc
	Stats      domain.StatsStore

	// Transport nil usa http.DefaultTransport. UpstreamTimeout vale para
	// qualquer Transport, pois é aplicado no contexto da requisição.
	Transport       http.RoundTripper
	UpstreamTimeout time.Duration
	StripPrefix     string
	MaxJSONBody     int64

	Logger logger.Sink
	Now    func() time.Time
}

type Pipeline struct {
	cfg    ProxyConfig
	cfgErr error

	policy     *headerpolicy.Policy
	limiter    *application.Service
	keyHeaders []string
	keyFn      ratelimit.KeyFunc
	stats      domain.StatsStore

	proxy           *httputil.ReverseProxy
	upstreamTimeout time.Duration
	stripPrefix     string
	maxJSONBody int64

	log      logger.Sink
	now      func() time.Time
	nearWarn *rate.Sometimes
}

func New(opts Options) *Pipeline {
	if opts.Policy == nil {
		opts.Policy = headerpolicy.New()
	}
	if len(opts.KeyHeaders) == 0 {
		opts.KeyHeaders = ratelimit.DefaultKeyHeaders
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ratelimit.DefaultKeyFunc(ratelimit.KeyOptions{Headers: opts.KeyHeaders})
	}
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.StripPrefix == "" {
		opts.StripPrefix = DefaultStripPrefix
	}
	if opts.MaxJSONBody <= 0 {
		opts.MaxJSONBody = DefaultMaxJSONBody
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cfg, err := opts.Settings.Resolve()
	p := &Pipeline{
		cfg:             cfg,
		cfgErr:          err,
		policy:          opts.Policy,
		limiter:         opts.Limiter,
		keyHeaders:      opts.KeyHeaders,
		keyFn:           opts.KeyFn,
		stats:           opts.Stats,
		upstreamTimeout: opts.UpstreamTimeout,
		stripPrefix:     opts.StripPrefix,
		maxJSONBody:     opts.MaxJSONBody,
		log:             opts.Logger,
		now:             opts.Now,
		nearWarn:        &rate.Sometimes{Interval: 10 * time.Second},
	}
	p.proxy = p.newReverseProxy(opts.Transport)
	return p
}

// ConfigError devolve o erro de configuração, se houver. O processo sobe
// mesmo assim; as requisições /api recebem 500.
func (p *Pipeline) ConfigError() error { return p.cfgErr }

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := p.now()
	status, reqID := p.serve(w, r)
	p.log.Info("proxy request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration_ms", p.now().Sub(start).Milliseconds(),
		"request_id", reqID,
	)
}

func (p *Pipeline) serve(w http.ResponseWriter, r *http.Request) (int, string) {
	if p.cfgErr != nil {
		return p.fail(w, r, nil, nil, p.cfgErr), ""
	}
	cfg := p.cfg

	if r.Method == http.MethodOptions {
		p.policy.Preflight(w, cfg.AllowedOrigin)
		return http.StatusNoContent, ""
	}

	ctx := r.Context()
	if _, err := auth.Authenticate(ctx, r, cfg.Auth); err != nil {
		return p.fail(w, r, &cfg, nil, err), ""
	}

	dec := p.limit(ctx, r)
	if dec != nil && !dec.Allowed {
		return p.fail(w, r, &cfg, dec, ErrRateLimitDenied), ""
	}

	reqID := requestID(r)
	target, err := p.upstreamURL(cfg.UpstreamBaseURL, r.URL)
	if err != nil {
		return p.fail(w, r, &cfg, dec, err), reqID
	}

	ctx, cancel := context.WithTimeout(ctx, p.upstreamTimeout)
	defer cancel()

	ex := &exchange{cfg: &cfg, dec: dec, reqID: reqID, target: target}
	p.proxy.ServeHTTP(w, r.WithContext(withExchange(ctx, ex)))
	return ex.status, reqID
}

// limit consulta o limiter. Falha do limiter vira fail-open com o resultado
// de fallback; nil significa rate limit desligado.
func (p *Pipeline) limit(ctx context.Context, r *http.Request) *domain.Decision {
	if p.limiter == nil {
		return nil
	}
	key := p.keyFn(r)

	dec, err := p.limiter.Decide(ctx, key)
	switch {
	case err != nil:
		p.log.Warn("rate limiter unavailable, failing open", "key", key, "err", err)
	case dec.Allowed && dec.Remaining <= p.limiter.Config.WarningThreshold:
		p.nearWarn.Do(func() {
			p.log.Warn("client approaching rate limit", "key", key, "remaining", dec.Remaining)
		})
	}

	if p.stats != nil {
		ev := domain.StatsEvent{
			Key:      key,
			Allowed:  dec.Allowed,
			FailOpen: dec.FailOpen,
			Method:   r.Method,
			Path:     r.URL.Path,
			At:       p.now(),
		}
		if err := p.stats.Record(ctx, ev); err != nil {
			p.log.Debug("rate limit stats not recorded", "err", err)
		}
	}
	return &dec
}

// decorate aplica CORS e X-RateLimit-* sobre os headers da resposta.
func (p *Pipeline) decorate(h http.Header, cfg *ProxyConfig, dec *domain.Decision) {
	if cfg != nil {
		p.policy.ApplyCORS(h, cfg.AllowedOrigin)
	}
	if dec != nil {
		ratelimit.SetHeaders(h, dec.Result, p.limiter.Config)
	}
}

// fail registra a falha uma vez e responde com o envelope mapeado.
func (p *Pipeline) fail(w http.ResponseWriter, r *http.Request, cfg *ProxyConfig, dec *domain.Decision, err error) int {
	status, msg := StatusOf(err)
	args := []any{"kind", kindOf(err), "method", r.Method, "path", r.URL.Path, "status", status, "err", err}

	switch {
	case status >= http.StatusInternalServerError:
		p.log.Error("proxy request failed", args...)
	case errors.Is(err, ErrRateLimitDenied):
		p.log.Warn("rate limit exceeded", args...)
	default:
		p.log.Warn("proxy request rejected", args...)
	}

	p.decorate(w.Header(), cfg, dec)
	_ = envelope.WriteError(w, status, msg)
	return status
}
