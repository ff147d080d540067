package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the process-wide structured logger. The zero value discards
// everything, so packages may log before Init runs (tests rely on this).
var Logger zerolog.Logger

// Options configures the global logger
type Options struct {
	Service     string
	Development bool
	Level       string
	Output      io.Writer
}

// Init replaces Logger and zerolog's global logger. Development switches to
// the human-readable console writer.
func Init(opts Options) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Development {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	Logger = ctx.Logger()
	log.Logger = Logger
	SetLevel(opts.Level)
}

// Info starts an info event carrying the trace and span ids found in ctx
func Info(ctx context.Context) *zerolog.Event {
	return withSpan(ctx, Logger.Info())
}

// Error starts an error event carrying the trace and span ids found in ctx
func Error(ctx context.Context) *zerolog.Event {
	return withSpan(ctx, Logger.Error())
}

// Debug starts a debug event carrying the trace and span ids found in ctx
func Debug(ctx context.Context) *zerolog.Event {
	return withSpan(ctx, Logger.Debug())
}

// Warn starts a warn event carrying the trace and span ids found in ctx
func Warn(ctx context.Context) *zerolog.Event {
	return withSpan(ctx, Logger.Warn())
}

// withSpan is a no-op for disabled (nil) events
func withSpan(ctx context.Context, e *zerolog.Event) *zerolog.Event {
	if e == nil || ctx == nil {
		return e
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e = e.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}
	return e
}

// SetLevel sets the global log level. Unknown values fall back to info.
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
