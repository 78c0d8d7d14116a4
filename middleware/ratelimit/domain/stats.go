package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Cuidado com cardinalidade: salvar Key/Path sem controle pode explodir
// o número de chaves no Redis.
type StatsEvent struct {
	Key      Key
	Allowed  bool
	FailOpen bool

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas das decisões.
// O pipeline trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
