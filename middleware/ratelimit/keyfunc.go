package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"edge-gateway/middleware/ratelimit/domain"
)

// UnknownKey agrupa todos os clientes sem IP detectável num único balde.
const UnknownKey = "unknown"

// DefaultKeyHeaders em ordem de preferência: o header injetado pelo proxy
// de borda vem antes dos genéricos.
var DefaultKeyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP", "X-Client-IP"}

type KeyFunc func(r *http.Request) domain.Key

type KeyOptions struct {
	Headers []string
	// FallbackRemoteAddr usa o IP da conexão antes de cair em UnknownKey.
	FallbackRemoteAddr bool
}

func DefaultKeyFunc(opts KeyOptions) KeyFunc {
	headers := opts.Headers
	if len(headers) == 0 {
		headers = DefaultKeyHeaders
	}
	return func(r *http.Request) domain.Key {
		if ip := ClientIP(r, headers); ip != "" {
			return domain.Key(ip)
		}
		if opts.FallbackRemoteAddr {
			if host := remoteHost(r.RemoteAddr); host != "" {
				return domain.Key(host)
			}
		}
		return UnknownKey
	}
}

// ClientIP devolve o primeiro valor não vazio entre os headers; listas
// (X-Forwarded-For) contribuem com o primeiro elemento, o cliente original.
func ClientIP(r *http.Request, headers []string) string {
	for _, h := range headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		first, _, _ := strings.Cut(v, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return ""
}

func remoteHost(addr string) string {
	addr = strings.TrimSpace(addr)
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		return host
	}
	return addr
}
