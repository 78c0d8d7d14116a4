package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"edge-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// scriptSliding aplica a janela deslizante de forma atômica num ZSET.
// Retorna {allowed, count antes da decisão, timestamp mais antigo}.
var scriptSliding = redis.NewScript(`
-- KEYS[1] = zset da chave
-- ARGV[1] = now_ms, ARGV[2] = window_ms, ARGV[3] = max
-- ARGV[4] = member, ARGV[5] = idle_ms
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. (now - window))

local count = redis.call('ZCARD', KEYS[1])
local allowed = 0
if count < limit then
  redis.call('ZADD', KEYS[1], now, ARGV[4])
  allowed = 1
end

local oldest = now
local first = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end

redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[5]))
return {allowed, count, oldest}
`)

// RedisWindowStore é a variante distribuída da WindowStore: cada chave vira
// um ZSET e o script Lua garante escritor único por chave. O PEXPIRE faz o
// papel do alarme de ociosidade.
type RedisWindowStore struct {
	rdb     redis.Scripter
	prefix  string
	idleTTL time.Duration
	now     func() time.Time
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithWindowIdleTTL(d time.Duration) RedisWindowOption {
	return func(s *RedisWindowStore) { s.idleTTL = d }
}

func WithWindowClock(now func() time.Time) RedisWindowOption {
	return func(s *RedisWindowStore) { s.now = now }
}

func NewRedisWindowStore(rdb redis.Scripter, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:     rdb,
		prefix:  "ratelimit:window",
		idleTTL: 60 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) Route(ctx context.Context, key domain.Key, cfg domain.Config) (domain.Result, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Result{}, err
	}

	now := s.now().UnixMilli()
	idle := max(s.idleTTL.Milliseconds(), cfg.WindowSizeMs)
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	vals, err := scriptSliding.Run(ctx, s.rdb, []string{s.prefix + ":" + string(key)},
		now, cfg.WindowSizeMs, cfg.MaxRequests, member, idle,
	).Int64Slice()
	if err != nil {
		return domain.Result{}, fmt.Errorf("sliding window script: %w", err)
	}
	if len(vals) != 3 {
		return domain.Result{}, fmt.Errorf("sliding window script: unexpected reply %v", vals)
	}

	return resultFor(vals[0] == 1, int(vals[1]), vals[2], now, cfg), nil
}
