package gateway

import (
	"errors"
	"net/http"

	"edge-gateway/middleware/auth"
)

// Tipos de falha do pipeline. Cada etapa devolve um destes encadeado com a
// causa (%w); StatusOf é o único lugar que os traduz para HTTP.
var (
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrRateLimitDenied      = errors.New("rate limit exceeded")
	ErrUpstreamUnreachable  = errors.New("upstream unreachable")
	ErrUpstreamBadPayload   = errors.New("upstream returned an invalid payload")
)

// StatusOf mapeia um erro do pipeline para status e mensagem ao cliente.
// A mensagem nunca carrega detalhes do upstream ou do provedor de identidade.
func StatusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		return http.StatusInternalServerError, "Service configuration error"
	case errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, "Authorization header with Bearer token is required"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "Invalid or expired authentication token"
	case errors.Is(err, ErrRateLimitDenied):
		return http.StatusTooManyRequests, "Too many requests. Please try again later."
	case errors.Is(err, ErrUpstreamUnreachable):
		return http.StatusBadGateway, "Failed to connect to upstream service"
	case errors.Is(err, ErrUpstreamBadPayload):
		return http.StatusBadGateway, "Failed to parse upstream response"
	default:
		return http.StatusBadGateway, "Unknown proxy error"
	}
}

// kindOf dá um rótulo estável para logs.
func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, auth.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrRateLimitDenied):
		return "rate_limit_denied"
	case errors.Is(err, ErrUpstreamUnreachable):
		return "upstream_unreachable"
	case errors.Is(err, ErrUpstreamBadPayload):
		return "upstream_bad_payload"
	default:
		return "unclassified"
	}
}
