// Package domain define contratos e tipos do rate limit por janela deslizante
// e do limite de concorrência.
//
// Não depende de net/http nem de implementações concretas.
//
//go:generate mockgen -source=ratelimit.go -destination=mock/router_mock.go -package=mock
package domain
