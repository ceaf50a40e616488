// Package logging builds the zerolog logger used by the assetcompress CLI.
//
// Level, format (json/console) and output (stdout/stderr/file) are
// configurable. Each build gets a run_id field so concurrent builds writing
// to one log can be told apart.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config selects how log lines are written.
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// New creates a logger from cfg and a func that closes its output file.
// Unknown levels fall back to info. An output file that cannot be opened
// falls back to stderr, and the open error is returned with the logger.
func New(cfg Config) (zerolog.Logger, func() error, error) {
	writer, closer, err := openOutput(cfg.Output)
	return NewWithWriter(cfg, writer), closer, err
}

// NewWithWriter creates a logger writing to w, ignoring cfg.Output.
func NewWithWriter(cfg Config, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch output {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return os.Stderr, noop, fmt.Errorf("failed to open log output %q: %w", output, err)
		}
		return f, f.Close, nil
	}
}

// WithRunID returns a child logger tagged with a fresh run_id, and the id.
func WithRunID(l zerolog.Logger) (zerolog.Logger, string) {
	id := uuid.NewString()
	return l.With().Str("run_id", id).Logger(), id
}
