package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"edge-gateway/middleware/ratelimit"
	"edge-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

// exchange é o estado de uma requisição encaminhada, compartilhado entre
// Rewrite, ModifyResponse e ErrorHandler do ReverseProxy via contexto.
type exchange struct {
	cfg    *ProxyConfig
	dec    *domain.Decision
	reqID  string
	target *url.URL
	status int
}

type exchangeKey struct{}

func withExchange(ctx context.Context, ex *exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, ex)
}

func exchangeFrom(ctx context.Context) *exchange {
	ex, _ := ctx.Value(exchangeKey{}).(*exchange)
	if ex == nil {
		return &exchange{}
	}
	return ex
}

// newReverseProxy monta o proxy compartilhado por todas as requisições.
func (p *Pipeline) newReverseProxy(transport http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite:        p.rewrite,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.proxyError,
		Transport:      transport,
		ErrorLog:       newErrorLog(p.log),
	}
}

// rewrite monta a requisição para o upstream. O ReverseProxy já removeu os
// hop-by-hop e os X-Forwarded-* recebidos; a Policy remove o resto.
func (p *Pipeline) rewrite(pr *httputil.ProxyRequest) {
	ex := exchangeFrom(pr.In.Context())
	out := pr.Out

	out.URL = ex.target
	out.Host = ""
	out.Header = p.policy.FilterRequest(out.Header)

	// GET/HEAD nunca levam corpo ao upstream
	if out.Method == http.MethodGet || out.Method == http.MethodHead {
		out.Body = nil
		out.GetBody = nil
		out.ContentLength = 0
	}

	clientIP := ratelimit.ClientIP(pr.In, p.keyHeaders)
	if clientIP == "" {
		clientIP = ratelimit.UnknownKey
	}
	host := pr.In.Host
	if host == "" {
		host = "unknown"
	}
	out.Header.Set("X-Forwarded-For", clientIP)
	out.Header.Set("X-Forwarded-Proto", ex.cfg.ForwardedProto)
	out.Header.Set("X-Forwarded-Host", host)
	out.Header.Set(ex.cfg.CredentialHeader, ex.cfg.UpstreamCredential)
	out.Header.Set(requestIDHeader, ex.reqID)
}

// upstreamURL troca o prefixo público (/api) pela base do upstream e
// preserva a query. Trabalha sobre o path escapado para não decodificar
// segmentos como %2F.
func (p *Pipeline) upstreamURL(base *url.URL, in *url.URL) (*url.URL, error) {
	escaped := in.EscapedPath()
	if rest, ok := strings.CutPrefix(escaped, p.stripPrefix); ok && (rest == "" || rest[0] == '/') {
		escaped = rest
	}
	if escaped == "" {
		escaped = "/"
	}

	rawPath := strings.TrimRight(base.EscapedPath(), "/") + escaped
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("build upstream url: %w", err)
	}

	u := *base
	u.Path = path
	u.RawPath = rawPath
	u.RawQuery = in.RawQuery
	u.Fragment = ""
	return &u, nil
}
