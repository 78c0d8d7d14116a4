package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"edge-gateway/middleware/ratelimit/domain"
)

func TestDefaultKeyFunc_PrefersEdgeHeader(t *testing.T) {
	fn := DefaultKeyFunc(KeyOptions{})

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Forwarded-For", "5.6.7.8")
	r.Header.Set("CF-Connecting-IP", " 1.2.3.4 ")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected CF-Connecting-IP key, got %q", got)
	}
}

func TestDefaultKeyFunc_XForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultKeyFunc(KeyOptions{})

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	r.Header.Set("X-Real-IP", "9.9.9.9")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultKeyFunc_UnknownSharesOneBucket(t *testing.T) {
	fn := DefaultKeyFunc(KeyOptions{})

	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.RemoteAddr = "10.0.0.2:1234"

	if fn(r1) != UnknownKey || fn(r2) != UnknownKey {
		t.Fatalf("clients without ip headers must share the %q key", UnknownKey)
	}
}

func TestDefaultKeyFunc_OptionalRemoteAddrFallback(t *testing.T) {
	fn := DefaultKeyFunc(KeyOptions{FallbackRemoteAddr: true})

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	if got := fn(r); got != domain.Key("10.0.0.9") {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestDefaultKeyFunc_CustomHeaderOrder(t *testing.T) {
	fn := DefaultKeyFunc(KeyOptions{Headers: []string{"X-Client"}})

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("CF-Connecting-IP", "1.2.3.4")
	r.Header.Set("X-Client", "client-123")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected custom header key, got %q", got)
	}
}
