// Package obslog provides the structured logging surface shared by every
// subsystem of the module core. It wraps github.com/joeycumines/logiface
// the same way the teacher's logiface-slog adapter wires logiface to the
// standard library's log/slog: callers pick a slog.Handler, everything else
// (event pooling, level gating) is handled by logiface.
package obslog

import (
	"context"
	"log/slog"
	"os"

	"github.com/joeycumines/logiface"
	slogadapter "github.com/joeycumines/logiface-slog"
)

// Logger is the logger handle passed down into every subsystem.
type Logger struct {
	l *logiface.Logger[*slogadapter.Event]
}

// New constructs a Logger writing through handler. A nil handler defaults
// to a text handler on os.Stderr at the Info level.
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{l: logiface.New[*slogadapter.Event](slogadapter.NewLogger(handler))}
}

// Noop returns a Logger that discards everything.
func Noop() *Logger {
	return New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Debug logs a debug-level structured event.
func (g *Logger) Debug(msg string, fields ...Field) { g.log(logiface.LevelDebug, msg, fields) }

// Info logs an info-level structured event.
func (g *Logger) Info(msg string, fields ...Field) { g.log(logiface.LevelInformational, msg, fields) }

// Warn logs a warn-level structured event.
func (g *Logger) Warn(msg string, fields ...Field) { g.log(logiface.LevelWarning, msg, fields) }

// Error logs an error-level structured event.
func (g *Logger) Error(msg string, fields ...Field) { g.log(logiface.LevelError, msg, fields) }

// Field is a single structured logging attribute.
type Field struct {
	Key   string
	Value any
}

// Str builds a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int builds an integer field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Err builds an error-valued field.
func Err(err error) Field { return Field{Key: "error", Value: err} }

func (g *Logger) log(level logiface.Level, msg string, fields []Field) {
	if g == nil || g.l == nil {
		return
	}
	b := g.l.Build(level)
	if b == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			b = b.Str(f.Key, v)
		case error:
			b = b.Str(f.Key, v.Error())
		case int:
			b = b.Int(f.Key, v)
		default:
			b = b.Any(f.Key, v)
		}
	}
	b.Log(msg)
}

// WithContext returns g itself; ctx is not attached to the logger or
// passed to the handler.
func (g *Logger) WithContext(ctx context.Context) *Logger {
	return g
}
