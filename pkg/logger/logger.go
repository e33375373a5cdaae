// Package logger wraps zerolog with context-carried fields so request,
// subscription and invoice identifiers follow a call chain into every line
// it logs.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a goroutine stack to warn lines as well as errors.
	WarnStack bool
	// Format is "json" (default) or "console". Empty falls back to LOG_FORMAT.
	Format string
	Output io.Writer
}

type Logger struct {
	base      zerolog.Logger
	warnStack bool
}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	format := opts.Format
	if strings.TrimSpace(format) == "" {
		format = os.Getenv("LOG_FORMAT")
	}
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	return &Logger{
		base: zerolog.New(out).
			Level(opts.Level).
			With().
			Timestamp().
			Str("service", opts.ServiceName).
			Logger(),
		warnStack: opts.WarnStack,
	}
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// from returns the logger stored on ctx by a With* call, or the base logger.
func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry := zerolog.Ctx(ctx); entry != nil && entry.GetLevel() != zerolog.Disabled {
			return entry
		}
	}
	return &l.base
}

func (l *Logger) with(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	entry := build(l.from(ctx).With()).Logger()
	return entry.WithContext(ctx)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Fields(fields) })
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("request_id", requestID) })
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("user_id", userID) })
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("actor_role", role) })
}

func (l *Logger) WithSubscriptionID(ctx context.Context, subscriptionID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("subscription_id", subscriptionID) })
}

// WithInvoice tags lines with both the invoice id and its human number.
func (l *Logger) WithInvoice(ctx context.Context, invoiceID, invoiceNumber string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("invoice_id", invoiceID).Str("invoice_number", invoiceNumber)
	})
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.from(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.from(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.from(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stack())
	}
	event.Msg(msg)
}

// Error always carries a stack.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	l.from(ctx).Error().Err(err).Str("stack", stack()).Msg(msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
