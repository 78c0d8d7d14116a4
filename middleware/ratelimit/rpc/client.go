package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edge-gateway/middleware/ratelimit/domain"
)

// ErrCircuitOpen é retornado sem chamada de rede enquanto o breaker está aberto.
var ErrCircuitOpen = errors.New("rate limit rpc: circuit open")

// Client implementa domain.Router chamando um serviço de limiter remoto.
type Client struct {
	base    string
	http    *http.Client
	breaker *breaker
}

type ClientOption func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	breaker    BreakerOptions
}

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) { cfg.httpClient = c }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

func WithBreaker(opts BreakerOptions) ClientOption {
	return func(cfg *clientConfig) { cfg.breaker = opts }
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("rate limit rpc: invalid base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("rate limit rpc: invalid base url %q", baseURL)
	}

	cfg := clientConfig{timeout: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	return &Client{
		base:    strings.TrimRight(u.String(), "/"),
		http:    hc,
		breaker: newBreaker(cfg.breaker, nil),
	}, nil
}

func (c *Client) Route(ctx context.Context, key domain.Key, cfg domain.Config) (domain.Result, error) {
	if !c.breaker.allow() {
		return domain.Result{}, ErrCircuitOpen
	}

	res, err := c.do(ctx, key, cfg)
	if err != nil {
		c.breaker.failure()
		return domain.Result{}, err
	}
	c.breaker.success()
	return res, nil
}

func (c *Client) do(ctx context.Context, key domain.Key, cfg domain.Config) (domain.Result, error) {
	body, err := json.Marshal(CheckRequest{Config: cfg})
	if err != nil {
		return domain.Result{}, err
	}

	endpoint := c.base + "/check/" + url.PathEscape(string(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Result{}, fmt.Errorf("rate limit rpc: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return domain.Result{}, fmt.Errorf("rate limit rpc: unexpected status %d", resp.StatusCode)
	}

	var res domain.Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&res); err != nil {
		return domain.Result{}, fmt.Errorf("rate limit rpc: decode result: %w", err)
	}
	if res.Allowed == (res.RetryAfter != nil) {
		return domain.Result{}, fmt.Errorf("rate limit rpc: inconsistent result %+v", res)
	}
	return res, nil
}
