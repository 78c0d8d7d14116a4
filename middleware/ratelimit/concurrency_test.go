package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edge-gateway/middleware/envelope"

	"github.com/stretchr/testify/require"
)

func get(h http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://edge.example/api/x", nil))
	return rec
}

func TestConcurrencyMiddleware_RejectsWithEnvelopeWhenSaturated(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Hold") != "" {
			entered <- struct{}{}
			<-release
		}
		w.WriteHeader(http.StatusOK)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{Max: 1, AcquireTimeout: 20 * time.Millisecond})(next)

	held := make(chan int, 1)
	go func() {
		r := httptest.NewRequest(http.MethodGet, "http://edge.example/api/x", nil)
		r.Header.Set("X-Hold", "1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		held <- rec.Code
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("first request never reached the handler")
	}

	rec := get(h)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var env envelope.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.False(t, env.Success)
	require.Equal(t, http.StatusServiceUnavailable, env.StatusCode)
	require.Equal(t, "Service temporarily overloaded", *env.Message)

	close(release)
	require.Equal(t, http.StatusOK, <-held)
	require.Equal(t, http.StatusOK, get(h).Code, "slot is returned after the handler finishes")
}

func TestConcurrencyMiddleware_CustomRejectStatus(t *testing.T) {
	block := make(chan struct{})
	entered := make(chan struct{})
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-block
	})
	h := ConcurrencyMiddleware(ConcurrencyOptions{Max: 1, RejectStatus: http.StatusTooManyRequests, AcquireTimeout: 10 * time.Millisecond})(next)

	done := make(chan struct{})
	go func() {
		defer close(done)
		get(h)
	}()
	<-entered

	require.Equal(t, http.StatusTooManyRequests, get(h).Code)
	close(block)
	<-done
}

func TestConcurrencyMiddleware_DisabledPassesThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	get(ConcurrencyMiddleware(ConcurrencyOptions{Max: 0})(next))
	require.True(t, called)
}
