// Package obs holds shared observability: the service logger and
// Prometheus metrics.
package obs

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger returns the structured logger used across the service. Scoped
// loggers are derived with With(); base instances are never mutated.
func NewLogger(serviceName string) zerolog.Logger {
	return zerolog.New(os.Stdout).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}
