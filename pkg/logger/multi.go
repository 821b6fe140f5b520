package logger

import (
	"context"
	"errors"
	"log/slog"
)

// Multi returns a logger that hands every record to the handlers of all
// loggers. relay chat uses it to keep a JSON log file while also showing
// debug output on stderr.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	fan := make(fanout, 0, len(loggers))
	for _, l := range loggers {
		fan = append(fan, l.Handler())
	}
	return slog.New(fan)
}

// fanout is a slog.Handler that forwards to each of its handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers r to every handler that accepts its level. A failing
// handler does not stop delivery to the rest; their errors are joined.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) derive(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
