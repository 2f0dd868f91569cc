// Package logger wraps zerolog with context-carried fields so request, actor
// and job details follow a call through every layer.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to Warn entries.
	WarnStack bool
	// Format selects "json" (default) or "console" output.
	Format string
	Output io.Writer
}

type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

// Actor identifies the authenticated caller on log entries.
type Actor struct {
	UserID   string
	VendorID string
	Roles    []string
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	base := zerolog.New(out).
		Level(opts.Level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &Logger{base: &base, warnStack: opts.WarnStack}
}

// ParseLevel maps config text to a level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return l.base
}

func (l *Logger) with(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	entry := build(l.from(ctx).With()).Logger()
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, value)
	})
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Fields(fields)
	})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

// WithActor tags later entries with the caller. Empty parts are omitted.
func (l *Logger) WithActor(ctx context.Context, actor Actor) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		if actor.UserID != "" {
			c = c.Str("user_id", actor.UserID)
		}
		if actor.VendorID != "" {
			c = c.Str("vendor_id", actor.VendorID)
		}
		if len(actor.Roles) > 0 {
			c = c.Str("actor_role", strings.Join(actor.Roles, ","))
		}
		return c
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
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

// WarnErr logs a recoverable failure without a stack trace.
func (l *Logger) WarnErr(ctx context.Context, msg string, err error) {
	withError(l.from(ctx).Warn(), err).Msg(msg)
}

// Error logs err with a stack trace. Typed errors that map to a 4xx response
// are caller mistakes, so they skip the stack.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := withError(l.from(ctx).Error(), err)
	if typed := pkgerrors.As(err); typed == nil || !pkgerrors.IsClientFacing(typed.Code()) {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

func withError(event *zerolog.Event, err error) *zerolog.Event {
	if err == nil {
		return event
	}
	event = event.Err(err)
	if typed := pkgerrors.As(err); typed != nil {
		event = event.Str("error_code", string(typed.Code())).Bool("retryable", typed.Retryable())
	}
	return event
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
