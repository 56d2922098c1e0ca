// Package logging builds the zerolog logger shared by all binaries.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger for the given service and environment. Dev gets
// human-readable console output, everything else structured JSON.
func New(service, env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Logger()

	if env == "dev" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	return logger
}
