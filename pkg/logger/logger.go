// Package logger provides opinionated logging capabilities for docchat.
//
// Every component receives an explicitly constructed *slog.Logger. The CLI
// uses the pretty handler; the server defaults to JSON so log shippers can
// parse it.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level     slog.Level
	pretty    bool
	json      bool
	writer    io.Writer
	component string
}

// New builds a *slog.Logger from the given options. Without options it
// writes text records at Info level to os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.writer == nil {
		c.writer = os.Stdout
	}

	l := slog.New(c.handler())
	if c.component != "" {
		l = l.With("component", c.component)
	}
	return l
}

func (c *config) handler() slog.Handler {
	switch {
	case c.pretty:
		level := charmlog.InfoLevel
		if c.level <= slog.LevelDebug {
			level = charmlog.DebugLevel
		}
		return charmlog.NewWithOptions(c.writer, charmlog.Options{
			ReportTimestamp: true,
			Level:           level,
		})

	case c.json:
		return slog.NewJSONHandler(c.writer, &slog.HandlerOptions{Level: c.level})

	default:
		return slog.NewTextHandler(c.writer, &slog.HandlerOptions{Level: c.level})
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
