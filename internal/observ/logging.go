// Package observ carries the run's operational surface: structured logs,
// in-process metrics, and alerting.
package observ

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Level strings follow zerolog
// ("debug", "info", "warn", "error"); unknown values fall back to info.
// Console mode renders human-readable output for interactive use, otherwise
// logs are JSON lines.
func NewLogger(level string, console bool) zerolog.Logger {
	var out io.Writer = os.Stderr
	if console {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
