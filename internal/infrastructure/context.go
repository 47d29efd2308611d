package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	wellKey
)

// WithRunID tags ctx with the id shared by every log line of one command run
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunID returns the run id of ctx or ""
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// EnsureRunID keeps an existing run id and otherwise assigns a new one
func EnsureRunID(ctx context.Context) context.Context {
	if RunID(ctx) != "" {
		return ctx
	}
	return WithRunID(ctx, uuid.NewString())
}

// WithWell tags ctx with the well a log line is about
func WithWell(ctx context.Context, wellName string) context.Context {
	return context.WithValue(ctx, wellKey, wellName)
}

// Well returns the well name of ctx or ""
func Well(ctx context.Context) string {
	name, _ := ctx.Value(wellKey).(string)
	return name
}

// WithComponent creates a logger with a component field. On loggers built by
// this package a later call replaces the component instead of adding a
// second one.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String(componentKey, component))
}
