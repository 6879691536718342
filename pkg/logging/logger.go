// Package logging provides structured logging configuration using zerolog
// and the backend-neutral event sink consumed by the resilience core.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the configured logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a LogLevel to a zerolog.Level. Unknown values map to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow
//   - Outgoing requests (method, endpoint)
//   - Cache hits and misses
//   - Admission granted without waiting
//
// Info: normal operation
//   - Page fetched (page, items, total)
//   - Pagination complete
//   - Request succeeded after retry
//
// Warn: degraded but progressing
//   - Retry scheduled (attempt, delay, error_kind)
//   - Admission wait start/end
//   - Pagination truncated by max pages
//   - Retries exhausted
//
// Error: terminal conditions
//   - Terminal classification (bad request, unauthorized, not found, malformed)
//   - Pagination stopped with partial results
//   - Configuration errors
//
// Context Fields:
//   - endpoint: request path without the API key
//   - status_code: HTTP status code
//   - attempt: retry attempt number (1-based)
//   - delay: backoff or admission wait duration
//   - error_kind: classification kind
//   - page: page number (1-based)
//   - items: items in the current page
//   - total: cumulative item count
