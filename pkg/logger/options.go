package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Option configures a Logger created with New.
type Option func(*config)

// WithDebug lowers the level to Debug when debug is set. It never raises
// the level, so it composes with WithLevel.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = min(c.level, slog.LevelDebug)
		}
	}
}

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// ParseLevel accepts debug, info, warn or error in any case. An empty
// string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (available: debug, info, warn, error)", s)
	}
}

// WithPretty selects the colorized charmbracelet/log handler.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		c.pretty = pretty
	}
}

// WithJSON selects slog's JSON handler.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.json = json
	}
}

// WithWriter overrides the output writer. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writers = []io.Writer{w}
	}
}

// WithWriters writes every record to each of w.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithSource includes source file:line in log output.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}

// WithTerminalDetection writes to f, pretty when f is a terminal and JSON
// otherwise, so "lettarag serve" under a supervisor emits machine-readable
// logs.
func WithTerminalDetection(f *os.File) Option {
	return func(c *config) {
		c.writers = []io.Writer{f}
		c.pretty = term.IsTerminal(int(f.Fd()))
		c.json = !c.pretty
	}
}
