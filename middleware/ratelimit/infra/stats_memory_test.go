package infra

import (
	"context"
	"testing"

	"edge-gateway/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_CountsByOutcome(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Key: "a", Allowed: true, Method: "GET", Path: "/api/orders"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "a", Allowed: false, Method: "GET", Path: "/api/orders"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "b", Allowed: true, FailOpen: true, Method: "POST", Path: "/api/orders"})

	if got := s.Total(); got != (Counters{Allowed: 1, Denied: 1, FailOpen: 1}) {
		t.Fatalf("unexpected totals %+v", got)
	}
	if got := s.ByRoute()["GET /api/orders"]; got != (Counters{Allowed: 1, Denied: 1}) {
		t.Fatalf("unexpected route counters %+v", got)
	}
	if got := s.ByKey()["b"]; got.FailOpen != 1 {
		t.Fatalf("expected fail-open counted for key b, got %+v", got)
	}
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "a", Allowed: true})
	if len(s.ByKey()) != 0 {
		t.Fatalf("expected no per-key counters")
	}
}
