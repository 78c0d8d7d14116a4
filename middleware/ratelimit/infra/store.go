package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"edge-gateway/middleware/ratelimit/domain"
)

// ErrStoreClosed é retornado por Route depois de Close.
var ErrStoreClosed = errors.New("window store closed")

// WindowStore guarda uma janela deslizante por chave, em memória.
//
// Cada chave tem sua própria célula com mutex: verificações da mesma chave
// são serializadas e chaves diferentes não competem entre si. Cada célula
// arma um alarme (time.AfterFunc) que a descarta quando fica ociosa.
type WindowStore struct {
	mu     sync.Mutex
	cells  map[domain.Key]*windowCell
	closed bool

	now          func() time.Time
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type windowCell struct {
	mu       sync.Mutex
	win      domain.Window
	windowMs int64
	timer    *time.Timer
	dead     bool
}

type StoreOption func(*WindowStore)

// WithIdleTTL define o mínimo de inatividade antes de descartar uma chave.
// O limite efetivo é max(idleTTL, janela) para não perder timestamps vigentes.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *WindowStore) { s.idleTTL = d }
}

// WithCleanupEvery define a cadência do alarme de cada chave.
func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *WindowStore) { s.now = now }
}

func NewWindowStore(opts ...StoreOption) *WindowStore {
	s := &WindowStore{
		cells:        make(map[domain.Key]*windowCell),
		now:          time.Now,
		idleTTL:      60 * time.Second,
		cleanupEvery: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cleanupEvery <= 0 {
		s.cleanupEvery = 60 * time.Second
	}
	return s
}

// Route implementa domain.Router usando o relógio da store.
func (s *WindowStore) Route(ctx context.Context, key domain.Key, cfg domain.Config) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	if err := cfg.Validate(); err != nil {
		return domain.Result{}, err
	}
	return s.check(key, cfg, func() int64 { return s.now().UnixMilli() })
}

// CheckAt verifica a chave num instante explícito.
func (s *WindowStore) CheckAt(key domain.Key, now time.Time, cfg domain.Config) (domain.Result, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Result{}, err
	}
	ms := now.UnixMilli()
	return s.check(key, cfg, func() int64 { return ms })
}

func (s *WindowStore) check(key domain.Key, cfg domain.Config, nowMs func() int64) (domain.Result, error) {
	for {
		c, err := s.cell(key)
		if err != nil {
			return domain.Result{}, err
		}

		c.mu.Lock()
		if c.dead {
			// a célula foi descartada entre o lookup e o lock; tenta de novo
			c.mu.Unlock()
			s.drop(key, c)
			continue
		}
		res := slide(&c.win, nowMs(), cfg)
		c.windowMs = cfg.WindowSizeMs
		if c.timer == nil {
			c.timer = time.AfterFunc(s.cleanupEvery, func() { s.alarm(key, c) })
		}
		c.mu.Unlock()
		return res, nil
	}
}

func (s *WindowStore) cell(key domain.Key) (*windowCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	c, ok := s.cells[key]
	if !ok {
		c = &windowCell{}
		s.cells[key] = c
	}
	return c, nil
}

func (s *WindowStore) drop(key domain.Key, c *windowCell) {
	s.mu.Lock()
	if s.cells[key] == c {
		delete(s.cells, key)
	}
	s.mu.Unlock()
}

// alarm descarta a célula se ociosa além do limite, senão rearma.
func (s *WindowStore) alarm(key domain.Key, c *windowCell) {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		return
	}
	if !s.idle(c) {
		c.timer = time.AfterFunc(s.cleanupEvery, func() { s.alarm(key, c) })
		c.mu.Unlock()
		return
	}
	c.dead = true
	c.timer = nil
	c.mu.Unlock()

	s.drop(key, c)
}

// idle exige c.mu.
func (s *WindowStore) idle(c *windowCell) bool {
	threshold := max(s.idleTTL.Milliseconds(), c.windowMs)
	return s.now().UnixMilli()-c.win.LastActivity > threshold
}

// Cleanup descarta imediatamente todas as chaves ociosas.
func (s *WindowStore) Cleanup() {
	s.mu.Lock()
	snapshot := make(map[domain.Key]*windowCell, len(s.cells))
	for k, c := range s.cells {
		snapshot[k] = c
	}
	s.mu.Unlock()

	for k, c := range snapshot {
		c.mu.Lock()
		reap := !c.dead && s.idle(c)
		if reap {
			c.dead = true
			if c.timer != nil {
				c.timer.Stop()
				c.timer = nil
			}
		}
		c.mu.Unlock()
		if reap {
			s.drop(k, c)
		}
	}
}

// Len retorna quantas chaves estão vivas.
func (s *WindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cells)
}

// Close para todos os alarmes e libera o estado.
func (s *WindowStore) Close() error {
	s.mu.Lock()
	cells := s.cells
	s.cells = make(map[domain.Key]*windowCell)
	s.closed = true
	s.mu.Unlock()

	for _, c := range cells {
		c.mu.Lock()
		c.dead = true
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.mu.Unlock()
	}
	return nil
}
