package application

import (
	"context"
	"fmt"
	"time"

	"edge-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Não sabe nada de HTTP: devolve a decisão e, quando o limiter falha,
// uma decisão de fail-open junto com domain.ErrUnavailable.
type Service struct {
	Router  domain.Router
	Config  domain.Config
	Timeout time.Duration
	Now     func() time.Time
}

func (s Service) Decide(ctx context.Context, key domain.Key) (dec domain.Decision, err error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if s.Router == nil {
		return domain.Decision{Result: domain.FallbackResult(now(), s.Config)}, nil
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			dec = failOpen(now(), s.Config)
			err = fmt.Errorf("%w: panic: %v", domain.ErrUnavailable, p)
		}
	}()

	res, err := s.Router.Route(ctx, key, s.Config)
	if err != nil {
		return failOpen(now(), s.Config), fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	return domain.Decision{Result: res}, nil
}

func failOpen(now time.Time, cfg domain.Config) domain.Decision {
	return domain.Decision{Result: domain.FallbackResult(now, cfg), FailOpen: true}
}
