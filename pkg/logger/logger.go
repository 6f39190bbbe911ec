// Package logger provides the process-wide zerolog logger used by finch.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Config holds logger configuration.
type Config struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // console, json
	File   string `json:"file" mapstructure:"file"`     // optional log file
}

var (
	mu      sync.RWMutex
	base    zerolog.Logger
	ready   bool
	logFile *os.File
)

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Init configures the global logger. Calling it again replaces the previous
// configuration and closes any log file opened earlier.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", cfg.File, err)
		}
		logFile = f
		out = zerolog.MultiLevelWriter(out, f)
	}

	base = zerolog.New(out).With().Timestamp().Logger()
	ready = true
	return nil
}

// SetOutput points the global logger at w. Used by tests to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = zerolog.New(w).With().Timestamp().Logger()
	ready = true
}

// Get returns the global logger.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !ready {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		return &l
	}
	l := base
	return &l
}

// Component returns a child logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Ctx returns the logger attached to ctx with zerolog's WithContext, or the
// global logger, enriched with the trace and span ids carried by ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = Get()
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	child := l.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &child
}

// Close releases the log file, if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// Debug starts a debug level event.
func Debug() *zerolog.Event { return Get().Debug() }

// Info starts an info level event.
func Info() *zerolog.Event { return Get().Info() }

// Warn starts a warn level event.
func Warn() *zerolog.Event { return Get().Warn() }

// Error starts an error level event.
func Error() *zerolog.Event { return Get().Error() }
