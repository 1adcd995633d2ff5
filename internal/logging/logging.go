// Package logging builds a structured [log/slog] handler from CLI flag
// values, the way both cmd/genmsg and cmd/slipctl configure their
// default loggers.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
)

// Format is the log output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatLogfmt Format = "logfmt"
)

var (
	ErrUnknownLogLevel  = errors.New("unknown log level")
	ErrUnknownLogFormat = errors.New("unknown log format")
)

// ParseLevel parses a case-insensitive level string into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLogLevel, s)
	}
}

// ParseFormat parses a case-insensitive format string into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	switch f {
	case FormatJSON, FormatText, FormatLogfmt:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLogFormat, s)
	}
}

// NewHandler builds a slog.Handler writing to w at the given level and
// format.
func NewHandler(w io.Writer, level slog.Level, format Format) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

// Config holds logging flag values, registered onto a command's flag
// set and resolved into a handler once parsing is done.
type Config struct {
	Level  string
	Format string
}

// NewConfig returns a Config with the package defaults (info/text).
func NewConfig() *Config {
	return &Config{Level: "info", Format: "text"}
}

// RegisterFlags adds --log-level and --log-format to fs.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Level, "log-level", c.Level, "log level, one of: error, warn, info, debug")
	fs.StringVar(&c.Format, "log-format", c.Format, "log format, one of: json, text, logfmt")
}

// NewHandler resolves c's string fields and builds a handler writing to w.
func (c *Config) NewHandler(w io.Writer) (slog.Handler, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	return NewHandler(w, level, format), nil
}
