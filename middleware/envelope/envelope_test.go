package envelope

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewAt_SuccessAndFailureShape(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.FixedZone("BRT", -3*3600))

	ok := NewAt(now, http.StatusOK, map[string]any{"id": 1}, "ignored")
	require.True(t, ok.Success)
	require.Nil(t, ok.Message)
	require.Equal(t, "2024-03-01T15:30:45.123Z", ok.Timestamp)
	require.Equal(t, 200, ok.StatusCode)

	fail := NewAt(now, http.StatusNotFound, nil, "")
	require.False(t, fail.Success)
	require.NotNil(t, fail.Message)
	require.Equal(t, DefaultFailureMessage, *fail.Message)
}

func TestFailure_SerializesNullData(t *testing.T) {
	b, err := json.Marshal(Failure(http.StatusTooManyRequests, "Too many requests. Please try again later."))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, false, got["success"])
	require.Equal(t, "Too many requests. Please try again later.", got["message"])
	require.Equal(t, float64(429), got["statusCode"])
	require.Contains(t, got, "data")
	require.Nil(t, got["data"])
}

func TestIsStandard(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"response value", Success(200, nil), true},
		{"response pointer", &Response{}, true},
		{"map with all keys", map[string]any{"success": true, "message": nil, "timestamp": "x", "data": 1}, true},
		{"map missing data", map[string]any{"success": true, "message": nil, "timestamp": "x"}, false},
		{"raw json envelope", json.RawMessage(`{"success":true,"message":null,"timestamp":"t","data":[]}`), true},
		{"raw json other object", []byte(`{"items":[1,2]}`), false},
		{"raw json array", []byte(`[1,2]`), false},
		{"plain string", "hello", false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, IsStandard(tt.in), tt.name)
	}
}

func TestWrap_NeverDoubleWraps(t *testing.T) {
	payload := map[string]any{"orders": []any{1, 2}}

	once := Wrap(payload, http.StatusOK, "")
	twice := Wrap(once, http.StatusOK, "")
	require.Equal(t, once, twice)

	resp, ok := once.(Response)
	require.True(t, ok)
	require.Equal(t, payload, resp.Data)

	upstream := map[string]any{"success": false, "message": "x", "timestamp": "t", "data": nil}
	require.Equal(t, upstream, Wrap(upstream, http.StatusBadRequest, "API returned 400"))
}

func TestNormalize(t *testing.T) {
	standard := []byte(`{"success":true,"message":null,"timestamp":"t","statusCode":200,"data":{"b":1,"a":2}}`)
	out, err := Normalize(standard, http.StatusOK, "")
	require.NoError(t, err)
	require.Equal(t, standard, out)

	out, err = Normalize([]byte(`{"error":"nope"}`), http.StatusBadRequest, "API returned 400")
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(out, &env))
	require.Equal(t, false, env["success"])
	require.Equal(t, "API returned 400", env["message"])
	require.Equal(t, float64(400), env["statusCode"])
	require.Equal(t, map[string]any{"error": "nope"}, env["data"])

	// normalizar o resultado de novo não muda nada
	again, err := Normalize(out, http.StatusBadRequest, "API returned 400")
	require.NoError(t, err)
	require.Equal(t, out, again)

	_, err = Normalize([]byte(`{not json`), http.StatusOK, "")
	require.ErrorIs(t, err, ErrInvalidJSON)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusNotFound, "API route not found"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.False(t, got.Success)
	require.Equal(t, "API route not found", *got.Message)
	require.Equal(t, 404, got.StatusCode)
}
