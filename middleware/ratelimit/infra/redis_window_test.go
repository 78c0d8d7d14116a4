package infra

import (
	"context"
	"fmt"
	"testing"
	"time"

	"edge-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

func TestRedisWindowStore_Integration(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping integration test: Redis not available (%v)", err)
	}

	clock := newFakeClock(time.Now().UnixMilli())
	s := NewRedisWindowStore(client,
		WithWindowPrefix(fmt.Sprintf("it_test_%d", time.Now().UnixNano())),
		WithWindowClock(clock.Now),
	)
	cfg := domain.Config{WindowSizeMs: 60_000, MaxRequests: 2}

	var got []domain.Result
	for _, step := range []time.Duration{0, 10 * time.Millisecond, 10 * time.Millisecond} {
		clock.Advance(step)
		r, err := s.Route(ctx, "1.2.3.4", cfg)
		if err != nil {
			t.Fatalf("Redis error: %v", err)
		}
		got = append(got, r)
	}
	if !got[0].Allowed || !got[1].Allowed || got[2].Allowed {
		t.Fatalf("expected [true true false], got %+v", got)
	}
	if got[2].RetryAfter == nil || *got[2].RetryAfter != 60 {
		t.Fatalf("expected retryAfter=60, got %v", got[2].RetryAfter)
	}

	clock.Advance(60_000 * time.Millisecond)
	r, err := s.Route(ctx, "1.2.3.4", cfg)
	if err != nil {
		t.Fatalf("Redis error: %v", err)
	}
	if !r.Allowed || r.Remaining != 1 {
		t.Fatalf("expected allowed with remaining=1 after the window, got %+v", r)
	}
}
