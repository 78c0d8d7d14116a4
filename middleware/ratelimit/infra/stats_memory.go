package infra

import (
	"context"
	"maps"
	"sync"

	"edge-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed  int64
	Denied   int64
	FailOpen int64
}

func (c *Counters) add(ev domain.StatsEvent) {
	switch {
	case ev.FailOpen:
		c.FailOpen++
	case ev.Allowed:
		c.Allowed++
	default:
		c.Denied++
	}
}

// MemoryStatsStore conta decisões em memória, sem expiração.
// Serve para desenvolvimento e testes.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[domain.Key]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[domain.Key]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)

	c := s.byRoute[route]
	c.add(ev)
	s.byRoute[route] = c

	if s.trackKeys {
		k := s.byKey[ev.Key]
		k.add(ev)
		s.byKey[ev.Key] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byRoute)
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byKey)
}
