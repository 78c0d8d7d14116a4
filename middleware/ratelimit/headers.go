package ratelimit

import (
	"net/http"
	"strconv"

	"edge-gateway/middleware/ratelimit/domain"
)

// SetHeaders escreve os headers X-RateLimit-* a partir de um resultado.
// Retry-After só aparece quando a requisição foi negada.
func SetHeaders(h http.Header, res domain.Result, cfg domain.Config) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(ceilDiv(res.ResetTime, 1000), 10))
	h.Set("X-RateLimit-Window", strconv.FormatFloat(float64(cfg.WindowSizeMs)/1000, 'f', -1, 64))
	if !res.Allowed && res.RetryAfter != nil {
		h.Set("Retry-After", strconv.FormatInt(*res.RetryAfter, 10))
	} else {
		h.Del("Retry-After")
	}
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}
