package gateway

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettings_Resolve(t *testing.T) {
	cfg, err := Settings{
		UpstreamURL:        "https://upstream.example/v1/",
		UpstreamCredential: "secret",
		AllowedOrigin:      "https://app.example",
	}.Resolve()
	require.NoError(t, err)
	require.Equal(t, "upstream.example", cfg.UpstreamBaseURL.Host)
	require.Equal(t, DefaultCredentialHeader, cfg.CredentialHeader)
	require.Equal(t, DefaultForwardedProto, cfg.ForwardedProto)
}

func TestSettings_ResolveMissingFields(t *testing.T) {
	cases := map[string]Settings{
		"empty":           {},
		"no credential":   {UpstreamURL: "https://u.example", AllowedOrigin: "*"},
		"no origin":       {UpstreamURL: "https://u.example", UpstreamCredential: "k"},
		"relative url":    {UpstreamURL: "/just/a/path", UpstreamCredential: "k", AllowedOrigin: "*"},
		"unsupported url": {UpstreamURL: "ftp://u.example", UpstreamCredential: "k", AllowedOrigin: "*"},
	}
	for name, s := range cases {
		_, err := s.Resolve()
		require.ErrorIs(t, err, ErrConfigurationMissing, name)
		status, _ := StatusOf(err)
		require.Equal(t, http.StatusInternalServerError, status, name)
	}
}
