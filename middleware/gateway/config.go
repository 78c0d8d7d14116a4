package gateway

import (
	"fmt"
	"net/url"
	"strings"

	"edge-gateway/middleware/auth"
)

const (
	DefaultCredentialHeader = "X-Api-Key"
	DefaultForwardedProto   = "https"
)

// Settings é a configuração do processo como foi lida (env/YAML), ainda
// sem validação.
type Settings struct {
	UpstreamURL        string
	UpstreamCredential string
	CredentialHeader   string
	AllowedOrigin      string
	ForwardedProto     string
	Auth               *auth.Config
}

// ProxyConfig é a configuração validada usada pelo pipeline. Somente leitura.
type ProxyConfig struct {
	UpstreamBaseURL    *url.URL
	UpstreamCredential string
	CredentialHeader   string
	AllowedOrigin      string
	ForwardedProto     string
	Auth               *auth.Config
}

// Resolve valida Settings. Campos obrigatórios ausentes resultam em
// ErrConfigurationMissing.
func (s Settings) Resolve() (ProxyConfig, error) {
	var missing []string
	if strings.TrimSpace(s.UpstreamURL) == "" {
		missing = append(missing, "upstream url")
	}
	if s.UpstreamCredential == "" {
		missing = append(missing, "upstream credential")
	}
	if strings.TrimSpace(s.AllowedOrigin) == "" {
		missing = append(missing, "allowed origin")
	}
	if len(missing) > 0 {
		return ProxyConfig{}, fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}

	base, err := url.Parse(strings.TrimSpace(s.UpstreamURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return ProxyConfig{}, fmt.Errorf("%w: invalid upstream url %q", ErrConfigurationMissing, s.UpstreamURL)
	}

	cfg := ProxyConfig{
		UpstreamBaseURL:    base,
		UpstreamCredential: s.UpstreamCredential,
		CredentialHeader:   s.CredentialHeader,
		AllowedOrigin:      strings.TrimSpace(s.AllowedOrigin),
		ForwardedProto:     s.ForwardedProto,
		Auth:               s.Auth,
	}
	if cfg.CredentialHeader == "" {
		cfg.CredentialHeader = DefaultCredentialHeader
	}
	if cfg.ForwardedProto == "" {
		cfg.ForwardedProto = DefaultForwardedProto
	}
	return cfg, nil
}
