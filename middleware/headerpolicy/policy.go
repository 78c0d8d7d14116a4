// Package headerpolicy decide quais headers atravessam o gateway e monta
// os headers de CORS. A Policy é imutável depois de construída e pode ser
// compartilhada entre requisições.
package headerpolicy

import (
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

const (
	DefaultAllowMethods  = "GET, POST, PUT, DELETE, PATCH, OPTIONS"
	DefaultAllowHeaders  = "Content-Type, Authorization, X-API-KEY, X-Requested-With"
	DefaultExposeHeaders = "X-Proxied-By"
	DefaultMaxAge        = 86400
	DefaultProxiedBy     = "edge-gateway"
)

// DefaultRequestSkip são headers de entrada que não seguem para o upstream:
// host, identificadores do proxy de borda e forwarded-* recebidos do cliente.
// Accept-Encoding também fica de fora para o transporte negociar a compressão.
var DefaultRequestSkip = []string{
	"Host",
	"Cf-Ray",
	"Cf-Connecting-Ip",
	"Cf-Visitor",
	"X-Forwarded-For",
	"X-Forwarded-Proto",
	"X-Forwarded-Host",
	"X-Real-Ip",
	"Accept-Encoding",
}

// DefaultResponseSkip são os headers hop-by-hop da resposta.
var DefaultResponseSkip = []string{
	"Transfer-Encoding",
	"Connection",
	"Keep-Alive",
	"Upgrade",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Trailer",
}

type Policy struct {
	requestSkip  map[string]struct{}
	responseSkip map[string]struct{}

	allowMethods  string
	allowHeaders  string
	exposeHeaders string
	maxAge        int
	proxiedBy     string
}

type Option func(*Policy)

func WithRequestSkip(names ...string) Option {
	return func(p *Policy) { p.requestSkip = canonicalSet(names) }
}

func WithResponseSkip(names ...string) Option {
	return func(p *Policy) { p.responseSkip = canonicalSet(names) }
}

func WithAllowMethods(v string) Option  { return func(p *Policy) { p.allowMethods = v } }
func WithAllowHeaders(v string) Option  { return func(p *Policy) { p.allowHeaders = v } }
func WithExposeHeaders(v string) Option { return func(p *Policy) { p.exposeHeaders = v } }
func WithMaxAge(seconds int) Option     { return func(p *Policy) { p.maxAge = seconds } }

// WithProxiedBy define o valor de X-Proxied-By.
func WithProxiedBy(v string) Option { return func(p *Policy) { p.proxiedBy = v } }

func New(opts ...Option) *Policy {
	p := &Policy{
		requestSkip:   canonicalSet(DefaultRequestSkip),
		responseSkip:  canonicalSet(DefaultResponseSkip),
		allowMethods:  DefaultAllowMethods,
		allowHeaders:  DefaultAllowHeaders,
		exposeHeaders: DefaultExposeHeaders,
		maxAge:        DefaultMaxAge,
		proxiedBy:     DefaultProxiedBy,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func canonicalSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set[http.CanonicalHeaderKey(n)] = struct{}{}
		}
	}
	return set
}

func (p *Policy) ProxiedBy() string { return p.proxiedBy }

// FilterRequest copia os headers de entrada que podem seguir para o upstream.
func (p *Policy) FilterRequest(in http.Header) http.Header {
	return filter(in, p.requestSkip)
}

// FilterResponse copia os headers do upstream que podem voltar ao cliente.
func (p *Policy) FilterResponse(in http.Header) http.Header {
	return filter(in, p.responseSkip)
}

// filter também descarta os headers nomeados no próprio Connection.
func filter(in http.Header, skip map[string]struct{}) http.Header {
	nominated := connectionTokens(in)
	out := make(http.Header, len(in))
	for k, vv := range in {
		ck := http.CanonicalHeaderKey(k)
		if _, drop := skip[ck]; drop {
			continue
		}
		if _, drop := nominated[ck]; drop {
			continue
		}
		out[ck] = append([]string(nil), vv...)
	}
	return out
}

func connectionTokens(h http.Header) map[string]struct{} {
	var set map[string]struct{}
	for _, v := range h.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.TrimSpace(tok)
			if !httpguts.ValidHeaderFieldName(tok) {
				continue
			}
			if set == nil {
				set = make(map[string]struct{})
			}
			set[http.CanonicalHeaderKey(tok)] = struct{}{}
		}
	}
	return set
}

// CORS monta o conjunto completo de headers de CORS para a origem permitida.
func (p *Policy) CORS(allowedOrigin string) http.Header {
	h := make(http.Header, 5)
	p.ApplyCORS(h, allowedOrigin)
	return h
}

func (p *Policy) ApplyCORS(h http.Header, allowedOrigin string) {
	h.Set("Access-Control-Allow-Origin", allowedOrigin)
	h.Set("Access-Control-Allow-Methods", p.allowMethods)
	h.Set("Access-Control-Allow-Headers", p.allowHeaders)
	h.Set("Access-Control-Expose-Headers", p.exposeHeaders)
	h.Set("Access-Control-Max-Age", strconv.Itoa(p.maxAge))
}

// Preflight responde um OPTIONS com 204 e apenas CORS.
func (p *Policy) Preflight(w http.ResponseWriter, allowedOrigin string) {
	p.ApplyCORS(w.Header(), allowedOrigin)
	w.WriteHeader(http.StatusNoContent)
}
