// Package logger provides opinionated slog loggers for the relay: a plain text
// handler by default, a JSON handler for service logs, and a colorized
// charmbracelet/log handler for interactive CLI use.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level   slog.Level
	format  format
	source  bool
	writers []io.Writer
}

// New builds a *slog.Logger from opts. Without options it writes text
// records at Info level to stdout. JSON wins over pretty.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(c)
	}
	return slog.New(c.handler())
}

func (c *config) output() io.Writer {
	switch len(c.writers) {
	case 0:
		return os.Stdout
	case 1:
		return c.writers[0]
	default:
		return io.MultiWriter(c.writers...)
	}
}

func (c *config) handler() slog.Handler {
	w := c.output()
	opts := &slog.HandlerOptions{Level: c.level, AddSource: c.source}

	switch c.format {
	case formatJSON:
		return slog.NewJSONHandler(w, opts)
	case formatPretty:
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			ReportCaller:    c.source,
		})
	default:
		return slog.NewTextHandler(w, opts)
	}
}

// Nop returns a logger that discards every record.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
