package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("json", slog.LevelWarn, &buf)

	l.Info("dropped")
	l.Warn("kept", "key", "k1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "kept", rec["msg"])
	require.Equal(t, "k1", rec["key"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("text", slog.LevelInfo, &buf)
	l.Info("hello", "n", 1)
	require.Contains(t, buf.String(), "msg=hello")
	require.Contains(t, buf.String(), "n=1")
}

func TestNop_SatisfiesSink(t *testing.T) {
	var s Sink = Nop()
	s.Info("ignored")
	s.Error("ignored")
}
