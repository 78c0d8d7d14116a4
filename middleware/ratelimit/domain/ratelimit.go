package domain

// Camada de domínio do rate limit (janela deslizante por cliente).
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Key identifica o cliente limitado (IP de origem, normalmente).
type Key string

var (
	// ErrInvalidConfig indica parâmetros de janela inconsistentes.
	ErrInvalidConfig = errors.New("invalid rate limit config")

	// ErrUnavailable indica que a decisão não pôde ser obtida (timeout,
	// backend fora, resposta inválida). O chamador deve seguir em fail-open.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// Config é a política da janela. Os nomes JSON são os mesmos trafegados
// entre gateway e serviço de limiter.
type Config struct {
	WindowSizeMs     int64 `json:"windowSizeMs" yaml:"windowSizeMs"`
	MaxRequests      int   `json:"maxRequests" yaml:"maxRequests"`
	WarningThreshold int   `json:"warningThreshold" yaml:"warningThreshold"`
}

func DefaultConfig() Config {
	return Config{WindowSizeMs: 60_000, MaxRequests: 100, WarningThreshold: 10}
}

func (c Config) Validate() error {
	if c.WindowSizeMs <= 0 {
		return fmt.Errorf("%w: windowSizeMs must be > 0", ErrInvalidConfig)
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("%w: maxRequests must be > 0", ErrInvalidConfig)
	}
	if c.WarningThreshold < 0 || c.WarningThreshold > c.MaxRequests {
		return fmt.Errorf("%w: warningThreshold must be within [0, maxRequests]", ErrInvalidConfig)
	}
	return nil
}

func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSizeMs) * time.Millisecond
}

// Window é o estado persistido por chave. Tempos em ms unix.
// Requests fica em ordem crescente porque só recebe "now" no final.
type Window struct {
	Requests     []int64
	WindowStart  int64
	LastActivity int64
}

// Result é a resposta de uma verificação. RetryAfter (segundos) só existe
// quando a requisição foi negada.
type Result struct {
	Allowed    bool   `json:"allowed"`
	Remaining  int    `json:"remainingRequests"`
	ResetTime  int64  `json:"resetTime"`
	RetryAfter *int64 `json:"retryAfter,omitempty"`
}

// Router entrega a verificação à célula que é dona da chave.
// Verificações da mesma chave são serializadas pela implementação.
type Router interface {
	Route(ctx context.Context, key Key, cfg Config) (Result, error)
}

// Decision é o que a camada application devolve ao adapter HTTP.
type Decision struct {
	Result
	// FailOpen indica que o limiter falhou e a requisição foi liberada
	// com o resultado de fallback.
	FailOpen bool
}

// FallbackResult é o resultado usado em fail-open.
func FallbackResult(now time.Time, cfg Config) Result {
	return Result{
		Allowed:   true,
		Remaining: cfg.MaxRequests,
		ResetTime: now.UnixMilli() + cfg.WindowSizeMs,
	}
}
