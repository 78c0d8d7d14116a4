package rpc

import (
	"sync/atomic"
	"time"
)

type breakerState int32

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerOptions configura o circuit breaker do cliente.
type BreakerOptions struct {
	FailureThreshold int64
	OpenDuration     time.Duration
	HalfOpenMaxCalls int64
}

// breaker abre depois de FailureThreshold falhas seguidas; aberto, recusa
// chamadas até OpenDuration passar e então libera HalfOpenMaxCalls sondas.
type breaker struct {
	state            atomic.Int32
	failures         atomic.Int64
	openUntil        atomic.Int64
	halfOpenInFlight atomic.Int64

	opts BreakerOptions
	now  func() time.Time
}

func newBreaker(opts BreakerOptions, now func() time.Time) *breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenDuration <= 0 {
		opts.OpenDuration = 5 * time.Second
	}
	if opts.HalfOpenMaxCalls <= 0 {
		opts.HalfOpenMaxCalls = 1
	}
	if now == nil {
		now = time.Now
	}
	b := &breaker{opts: opts, now: now}
	b.state.Store(int32(breakerClosed))
	return b
}

func (b *breaker) State() breakerState { return breakerState(b.state.Load()) }

func (b *breaker) allow() bool {
	switch b.State() {
	case breakerOpen:
		if b.now().UnixNano() < b.openUntil.Load() {
			return false
		}
		// o contador já foi zerado em trip; quem perde o CAS disputa a
		// mesma vaga de quem ganhou
		b.state.CompareAndSwap(int32(breakerOpen), int32(breakerHalfOpen))
		return b.probe()
	case breakerHalfOpen:
		return b.probe()
	default:
		return true
	}
}

func (b *breaker) probe() bool {
	if b.halfOpenInFlight.Add(1) <= b.opts.HalfOpenMaxCalls {
		return true
	}
	b.halfOpenInFlight.Add(-1)
	return false
}

func (b *breaker) success() {
	if b.State() == breakerHalfOpen {
		b.halfOpenInFlight.Add(-1)
		b.state.Store(int32(breakerClosed))
	}
	b.failures.Store(0)
}

func (b *breaker) failure() {
	if b.State() == breakerHalfOpen {
		b.halfOpenInFlight.Add(-1)
		b.trip()
		return
	}
	if b.failures.Add(1) >= b.opts.FailureThreshold {
		b.trip()
	}
}

func (b *breaker) trip() {
	b.halfOpenInFlight.Store(0)
	b.openUntil.Store(b.now().Add(b.opts.OpenDuration).UnixNano())
	b.state.Store(int32(breakerOpen))
}
