package infra

import (
	"context"
	"sync"

	"edge-gateway/middleware/ratelimit/domain"
)

// ChanPool limita requisições simultâneas com um channel de capacidade fixa.
type ChanPool struct {
	slots chan struct{}
}

var _ domain.SlotPool = (*ChanPool)(nil)

func NewChanPool(capacity int) *ChanPool {
	return &ChanPool{slots: make(chan struct{}, capacity)}
}

// Acquire espera uma vaga até ctx encerrar. Um ctx já encerrado nunca
// recebe vaga. O release devolvido é idempotente.
func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	select {
	case p.slots <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.slots }) }, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *ChanPool) InUse() int { return len(p.slots) }

func (p *ChanPool) Cap() int { return cap(p.slots) }
