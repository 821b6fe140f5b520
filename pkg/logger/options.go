package logger

import (
	"io"
	"log/slog"
)

// format selects the slog.Handler New builds.
type format int

const (
	formatText format = iota
	formatPretty
	formatJSON
)

// Option configures a logger built by New.
type Option func(*config)

// WithLevel sets the minimum level records must have to be written.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithDebug lowers the level to Debug. False leaves it at Info.
func WithDebug(debug bool) Option {
	if debug {
		return WithLevel(slog.LevelDebug)
	}
	return WithLevel(slog.LevelInfo)
}

// WithPretty switches to the colorized charmbracelet/log handler. It has no
// effect once WithJSON(true) was given.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		if pretty && c.format != formatJSON {
			c.format = formatPretty
		}
	}
}

// WithJSON switches to one JSON object per record.
func WithJSON(json bool) Option {
	return func(c *config) {
		if json {
			c.format = formatJSON
		}
	}
}

// WithWriter sends output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return WithWriters(w)
}

// WithWriters sends every record to each of ws.
func WithWriters(ws ...io.Writer) Option {
	return func(c *config) { c.writers = ws }
}

// WithSource annotates records with the caller's file and line.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}
