// Package envelope implementa o formato padrão de resposta
// {success, message, timestamp, statusCode, data} devolvido aos clientes.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// TimeFormat é ISO-8601 em UTC com milissegundos.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// DefaultFailureMessage é usada quando uma falha é criada sem mensagem.
const DefaultFailureMessage = "Request failed"

var ErrInvalidJSON = errors.New("invalid JSON payload")

// requiredKeys são as chaves que identificam um envelope já pronto.
var requiredKeys = [...]string{"success", "message", "timestamp", "data"}

type Response struct {
	Success    bool    `json:"success"`
	Message    *string `json:"message"`
	Timestamp  string  `json:"timestamp"`
	StatusCode int     `json:"statusCode"`
	Data       any     `json:"data"`
}

// NewAt monta um envelope. success = status 2xx; a mensagem só é
// preenchida em falha.
func NewAt(now time.Time, status int, data any, message string) Response {
	r := Response{
		Success:    status >= 200 && status < 300,
		Timestamp:  now.UTC().Format(TimeFormat),
		StatusCode: status,
		Data:       data,
	}
	if !r.Success {
		if message == "" {
			message = DefaultFailureMessage
		}
		r.Message = &message
	}
	return r
}

func New(status int, data any, message string) Response {
	return NewAt(time.Now(), status, data, message)
}

func Success(status int, data any) Response { return New(status, data, "") }

func Failure(status int, message string) Response { return New(status, nil, message) }

// IsStandard diz se v já está no formato do envelope.
func IsStandard(v any) bool {
	switch p := v.(type) {
	case Response, *Response:
		return true
	case map[string]any:
		for _, k := range requiredKeys {
			if _, ok := p[k]; !ok {
				return false
			}
		}
		return true
	case map[string]json.RawMessage:
		for _, k := range requiredKeys {
			if _, ok := p[k]; !ok {
				return false
			}
		}
		return true
	case json.RawMessage:
		return isStandardJSON(p)
	case []byte:
		return isStandardJSON(p)
	default:
		return false
	}
}

func isStandardJSON(b []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return false
	}
	return IsStandard(obj)
}

// Wrap envolve v num envelope, exceto quando v já é um envelope.
func Wrap(v any, status int, message string) any {
	if IsStandard(v) {
		return v
	}
	return New(status, v, message)
}

// Normalize recebe o corpo JSON de um upstream. Envelopes já prontos voltam
// byte a byte; qualquer outro JSON vira o campo data de um envelope novo.
func Normalize(body []byte, status int, message string) ([]byte, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, ErrInvalidJSON
	}
	if isStandardJSON(body) {
		return body, nil
	}
	return json.Marshal(New(status, json.RawMessage(body), message))
}

// Write serializa v como JSON com o status informado.
func Write(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError escreve um envelope de falha.
func WriteError(w http.ResponseWriter, status int, message string) error {
	return Write(w, status, Failure(status, message))
}
