package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"platereport/internal/config"
)

// InitializeLogger builds the JSON logger described by cfg and installs it as
// the slog default. Console output goes to stderr so command output on stdout
// stays machine readable. The returned func closes the log file, if any.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	out, closeLog, err := logOutput(cfg, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(out, cfg.Level, cfg.Development)
	slog.SetDefault(logger)
	return logger, closeLog, nil
}

// NewLogger builds a logger writing JSON to w without touching the slog
// default. Tests use it to capture log lines.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return newLogger(w, level, false)
}

func newLogger(w io.Writer, level string, addSource bool) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: addSource,
		Level:     parseLogLevel(level),
	})
	return slog.New(runHandler{Handler: handler})
}

func nopClose() error { return nil }

// logOutput resolves cfg.Output: "file", "both", anything else is console only
func logOutput(cfg config.LoggingConfig, console io.Writer) (io.Writer, func() error, error) {
	mode := strings.ToLower(cfg.Output)
	if mode != "file" && mode != "both" {
		return console, nopClose, nil
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.FilePath, err)
	}
	if mode == "file" {
		return f, f.Close, nil
	}
	return io.MultiWriter(console, f), f.Close, nil
}

// componentKey is held by runHandler instead of the wrapped handler so a
// nested WithComponent replaces the value rather than repeating the key
const componentKey = "component"

// runHandler adds the component, the run id, the well being processed and
// the active span to every record
type runHandler struct {
	slog.Handler
	component string
}

func (h runHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.component != "" {
		r.AddAttrs(slog.String(componentKey, h.component))
	}
	if id := RunID(ctx); id != "" {
		r.AddAttrs(slog.String("run_id", id))
	}
	if well := Well(ctx); well != "" {
		r.AddAttrs(slog.String("well", well))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	rest := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Key == componentKey {
			h.component = a.Value.String()
			continue
		}
		rest = append(rest, a)
	}
	if len(rest) > 0 {
		h.Handler = h.Handler.WithAttrs(rest)
	}
	return h
}

// WithGroup pins the current component outside the group
func (h runHandler) WithGroup(name string) slog.Handler {
	inner := h.Handler
	if h.component != "" {
		inner = inner.WithAttrs([]slog.Attr{slog.String(componentKey, h.component)})
	}
	return runHandler{Handler: inner.WithGroup(name)}
}

// parseLogLevel accepts the slog level names in any case plus "warning".
// Unknown levels fall back to info.
func parseLogLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
