package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a thin structured logger. Every record carries the component that
// emitted it.
type Logger struct {
	root      *slog.Logger
	component string
	attrs     []any
	log       *slog.Logger
}

// New builds a logger writing to stdout. format is "json" or "text"; level is
// one of debug, info, warn, error.
func New(component, level, format string) *Logger {
	return NewWithWriter(os.Stdout, component, level, format)
}

func NewWithWriter(w io.Writer, component, level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return derive(slog.New(h), component, nil)
}

// Nop discards everything. Used by tests.
func Nop() *Logger {
	return derive(slog.New(slog.NewTextHandler(io.Discard, nil)), "", nil)
}

// derive rebuilds from the untagged root so the component key appears once.
func derive(root *slog.Logger, component string, attrs []any) *Logger {
	log := root
	if component != "" {
		log = log.With("component", component)
	}
	if len(attrs) > 0 {
		log = log.With(attrs...)
	}
	return &Logger{root: root, component: component, attrs: attrs, log: log}
}

func (l *Logger) With(kv ...any) *Logger {
	attrs := append(l.attrs[:len(l.attrs):len(l.attrs)], kv...)
	return &Logger{root: l.root, component: l.component, attrs: attrs, log: l.log.With(kv...)}
}

// Component returns a child logger reporting as a different component.
func (l *Logger) Component(name string) *Logger {
	return derive(l.root, name, l.attrs)
}

func (l *Logger) Debug(msg string, kv ...any) { l.log.Debug(msg, kv...) }

func (l *Logger) Info(msg string, kv ...any) { l.log.Info(msg, kv...) }

func (l *Logger) Warn(msg string, kv ...any) { l.log.Warn(msg, kv...) }

func (l *Logger) Error(msg string, kv ...any) { l.log.Error(msg, kv...) }

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
