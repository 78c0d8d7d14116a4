// Package auth decide se uma requisição precisa de autenticação e, se
// precisar, valida o bearer token com um Verifier injetado.
//
//go:generate mockgen -source=auth.go -destination=mock/verifier_mock.go -package=mock
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrMissingToken    = fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
)

// DefaultWhitelist são os caminhos liberados quando nada é configurado.
var DefaultWhitelist = []string{"/health", "/api/health", "/api/public/*"}

// Subject é a identidade verificada. O gateway não a usa além do log.
type Subject struct {
	ID     string
	Claims map[string]any
}

// Verifier valida um token junto ao provedor de identidade.
type Verifier interface {
	Verify(ctx context.Context, token string) (Subject, error)
}

// Config é a política de autenticação do processo. Verifier nil significa
// que nenhum provedor foi configurado.
type Config struct {
	RequireAuth bool
	Whitelist   []string
	Verifier    Verifier
}

type Outcome int

const (
	NoAuthConfigured Outcome = iota
	Whitelisted
	Verified
)

func (o Outcome) String() string {
	switch o {
	case NoAuthConfigured:
		return "no_auth_configured"
	case Whitelisted:
		return "whitelisted"
	case Verified:
		return "verified"
	default:
		return "unknown"
	}
}

// Result é o desfecho aprovado de Authenticate.
type Result struct {
	Outcome Outcome
	Subject Subject
}

// Authenticate aplica a política a r. Qualquer falha carrega ErrUnauthenticated;
// a causa do provedor fica encadeada para log e não deve ir ao cliente.
func Authenticate(ctx context.Context, r *http.Request, cfg *Config) (Result, error) {
	if cfg == nil || cfg.Verifier == nil {
		return Result{Outcome: NoAuthConfigured}, nil
	}
	if !cfg.RequireAuth || MatchWhitelist(r.URL.Path, cfg.Whitelist) {
		return Result{Outcome: Whitelisted}, nil
	}

	token, ok := ExtractBearer(r.Header.Get("Authorization"))
	if !ok {
		return Result{}, ErrMissingToken
	}

	sub, err := cfg.Verifier.Verify(ctx, token)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return Result{Outcome: Verified, Subject: sub}, nil
}

// ExtractBearer aceita apenas "Bearer <token>"; qualquer outra forma conta
// como ausente.
func ExtractBearer(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// MatchWhitelist compara path com as entradas: igualdade exata, ou prefixo
// quando a entrada termina em "*". "/x/*" casa "/x/..." e também "/x".
func MatchWhitelist(path string, whitelist []string) bool {
	for _, entry := range whitelist {
		if entry == path {
			return true
		}
		prefix, wild := strings.CutSuffix(entry, "*")
		if !wild {
			continue
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
		if base, ok := strings.CutSuffix(prefix, "/"); ok && base != "" && path == base {
			return true
		}
	}
	return false
}
