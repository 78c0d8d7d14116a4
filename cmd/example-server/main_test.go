package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"edge-gateway/middleware/envelope"
	"edge-gateway/pkg/logger"

	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	h := newHandler("secret", "X-Api-Key", logger.Nop())

	do := func(method, path, key string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, path, nil)
		if key != "" {
			r.Header.Set("X-Api-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/orders", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/orders", "wrong").Code)

	rec := do(http.MethodGet, "/orders", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = do(http.MethodGet, "/orders/1", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, envelope.IsStandard(rec.Body.Bytes()))

	require.Equal(t, http.StatusNotFound, do(http.MethodGet, "/orders/99", "secret").Code)
	require.Equal(t, http.StatusCreated, do(http.MethodPost, "/orders", "secret").Code)

	rec = do(http.MethodGet, "/maintenance", "secret")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "Service Unavailable\n", rec.Body.String())

	rec = do(http.MethodGet, "/showTela", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Tela do Sistema")
}
