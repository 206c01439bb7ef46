// Package logging defines the structured-logging interface passed to every
// idkeeper component, with adapters for log/slog and go.uber.org/zap.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Info(ctx, "server started", "addr", addr, "env", env)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}

// Supported drivers.
const (
	DriverSlog = "slog"
	DriverZap  = "zap"
)

// Options selects and configures the logger once at process start.
type Options struct {
	Driver string    // slog (default) or zap
	Level  string    // debug, info (default), warn, error
	Format string    // json (default) or text
	Output io.Writer // defaults to os.Stdout
}

// New builds a Logger from opts.
func New(opts Options) (Logger, error) {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(opts.Format)
	if format != "" && format != "json" && format != "text" {
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	switch strings.ToLower(opts.Driver) {
	case "", DriverSlog:
		return newSlogFromOptions(level, format, opts.Output), nil
	case DriverZap:
		return newZapFromOptions(level, format, opts.Output), nil
	default:
		return nil, fmt.Errorf("unknown log driver %q", opts.Driver)
	}
}

// Level is the driver-neutral severity used by Options.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func parseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Nop discards everything. Useful in tests.
type Nop struct{}

func (Nop) Debug(context.Context, string, ...any) {}
func (Nop) Info(context.Context, string, ...any)  {}
func (Nop) Warn(context.Context, string, ...any)  {}
func (Nop) Error(context.Context, string, ...any) {}
func (n Nop) With(...any) Logger                  { return n }
