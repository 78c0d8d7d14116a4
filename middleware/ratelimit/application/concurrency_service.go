package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edge-gateway/middleware/ratelimit/domain"
)

// ErrSaturated indica que nenhuma vaga foi obtida dentro do prazo.
var ErrSaturated = errors.New("concurrency limit saturated")

// ConcurrencyService controla vagas de requisições simultâneas com timeout
// de espera, sem saber nada de HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta obter uma vaga. Com AcquireTimeout <= 0 espera até o ctx
// encerrar. Em erro nenhuma vaga foi obtida e release é nil.
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), err error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrSaturated, context.Cause(ctx))
	}
	return release, nil
}
