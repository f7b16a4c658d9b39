package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger built by New.
type Option func(*config)

// WithDebug lowers the level to Debug, which includes per-chunk ingestion
// and per-request retrieval records.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the charmbracelet/log handler used by the interactive
// commands.
func WithPretty(pretty bool) Option {
	return func(c *config) { c.pretty = pretty }
}

// WithJSON selects slog's JSON handler, used for the server log file.
func WithJSON(json bool) Option {
	return func(c *config) { c.json = json }
}

// WithWriter sends records to w instead of os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writer = w }
}

// WithComponent binds a "component" attribute naming the docchat command
// or subsystem that owns the logger, e.g. "server" or "ingest".
func WithComponent(name string) Option {
	return func(c *config) { c.component = name }
}
