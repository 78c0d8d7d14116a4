// Package logger concentra a configuração de log estruturado (log/slog) usada
// pelos binários e pelos middlewares.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Sink é o contrato mínimo de log que os componentes recebem por injeção.
// *slog.Logger já satisfaz esta interface.
type Sink interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ParseLevel converte o texto de LOG_LEVEL; valores desconhecidos viram info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New cria um logger JSON (padrão) ou texto escrevendo em w.
func New(format string, level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Init instala um logger JSON em stderr como default do processo.
func Init(level slog.Level) *slog.Logger {
	l := New("json", level, os.Stderr)
	slog.SetDefault(l)
	return l
}

// Nop descarta tudo. É o default quando nenhum Sink é injetado.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func Debug(msg string, args ...any) { slog.Debug(msg, args...) }
func Info(msg string, args ...any)  { slog.Info(msg, args...) }
func Warn(msg string, args ...any)  { slog.Warn(msg, args...) }
func Error(msg string, args ...any) { slog.Error(msg, args...) }
