// Package jwtverify implementa auth.Verifier para JWTs assinados com
// segredo HMAC ou chave pública RSA.
package jwtverify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edge-gateway/middleware/auth"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoKey = errors.New("jwtverify: secret or public key required")

type Options struct {
	Secret       []byte
	PublicKeyPEM []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
}

type Verifier struct {
	parser *jwt.Parser
	key    any
}

var _ auth.Verifier = (*Verifier)(nil)

func New(opts Options) (*Verifier, error) {
	var (
		key     any
		methods []string
	)
	switch {
	case len(opts.PublicKeyPEM) > 0:
		pub, err := jwt.ParseRSAPublicKeyFromPEM(opts.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("jwtverify: parse public key: %w", err)
		}
		key = pub
		methods = []string{"RS256", "RS384", "RS512"}
	case len(opts.Secret) > 0:
		key = opts.Secret
		methods = []string{"HS256", "HS384", "HS512"}
	default:
		return nil, ErrNoKey
	}

	popts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(opts.Leeway),
	}
	if opts.Issuer != "" {
		popts = append(popts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		popts = append(popts, jwt.WithAudience(opts.Audience))
	}

	return &Verifier{parser: jwt.NewParser(popts...), key: key}, nil
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Subject, error) {
	if err := ctx.Err(); err != nil {
		return auth.Subject{}, err
	}

	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}); err != nil {
		return auth.Subject{}, err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return auth.Subject{}, err
	}
	return auth.Subject{ID: sub, Claims: claims}, nil
}
