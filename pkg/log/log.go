// Package log configures structured logging for the approval engine.
package log

import (
	"log/slog"
	"os"
	"strings"
)

const serviceName = "approvalflow"

// Setup installs the process-wide default logger, tagged with the service
// name. Output is text on stderr; set LOG_FORMAT=json for log shippers.
func Setup(logLevel string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(logLevel)}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", serviceName))
}

// ParseLevel maps a level name to its slog level. Unknown or empty values
// fall back to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithModule returns the default logger tagged with an engine module name
// (approval, parallel, eventbus).
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
