// Package logging builds the engine's zap logger and keeps credential
// material out of anything it emits.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger for the given environment. "local" and
// "development" get the human-readable development config; anything else
// gets production JSON output.
func NewLogger(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	switch env {
	case "local", "development":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}
