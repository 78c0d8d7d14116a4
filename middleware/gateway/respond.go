package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"edge-gateway/middleware/envelope"
	"edge-gateway/pkg/logger"
)

// modifyResponse normaliza corpos JSON e aplica a política de headers, CORS,
// X-RateLimit-* e X-Proxied-By. Um erro aqui vai para proxyError antes de
// qualquer byte chegar ao cliente.
func (p *Pipeline) modifyResponse(resp *http.Response) error {
	ex := exchangeFrom(resp.Request.Context())

	if wrapsJSON(resp) {
		body, err := p.normalizedBody(resp)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		resp.ContentLength = int64(len(body))
		resp.Header.Del("Content-Encoding")
		resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	resp.Header = p.policy.FilterResponse(resp.Header)
	resp.Header.Set("X-Proxied-By", p.policy.ProxiedBy())
	p.decorate(resp.Header, ex.cfg, ex.dec)

	ex.status = resp.StatusCode
	return nil
}

func (p *Pipeline) normalizedBody(resp *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, p.maxJSONBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstreamUnreachable, err)
	}
	if int64(len(raw)) > p.maxJSONBody {
		return nil, fmt.Errorf("%w: body larger than %d bytes", ErrUpstreamBadPayload, p.maxJSONBody)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw, nil
	}

	status := resp.StatusCode
	msg := ""
	if status < 200 || status >= 300 {
		msg = fmt.Sprintf("API returned %d", status)
	}
	body, err := envelope.Normalize(raw, status, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamBadPayload, err)
	}
	return body, nil
}

// proxyError recebe falhas de transporte, timeout e de modifyResponse.
func (p *Pipeline) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	ex := exchangeFrom(r.Context())
	if !errors.Is(err, ErrUpstreamBadPayload) && !errors.Is(err, ErrUpstreamUnreachable) {
		err = fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}
	ex.status = p.fail(w, r, ex.cfg, ex.dec, err)
}

// wrapsJSON diz se o corpo deve ser lido e normalizado.
func wrapsJSON(resp *http.Response) bool {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotModified:
		return false
	}
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// sinkWriter leva as mensagens do log.Logger do ReverseProxy para o Sink.
type sinkWriter struct{ log logger.Sink }

func (s sinkWriter) Write(b []byte) (int, error) {
	s.log.Warn("reverse proxy", "detail", strings.TrimSpace(string(b)))
	return len(b), nil
}

func newErrorLog(sink logger.Sink) *log.Logger {
	return log.New(sinkWriter{log: sink}, "", 0)
}
