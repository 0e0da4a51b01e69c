package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is stamped on every log line
const ServiceName = "boodschap-backend"

// Options configures the structured logger
type Options struct {
	Level  zerolog.Level
	Format string
	Output io.Writer
}

// New builds the root logger. Format "console" switches to human readable output.
func New(opts Options) zerolog.Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.
		New(output).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger().
		Level(opts.Level)
}

// ParseLevel reads a level name, falling back to info
func ParseLevel(value string) zerolog.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(levelString); err == nil && lvl != zerolog.NoLevel {
		return lvl
	}
	return zerolog.InfoLevel
}

// WithRequestID returns a context whose logger carries request_id
func WithRequestID(ctx context.Context, base zerolog.Logger, requestID string) context.Context {
	return base.With().Str("request_id", requestID).Logger().WithContext(ctx)
}

// FromContext returns the logger attached to ctx, or fallback when none is
func FromContext(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return fallback
}
