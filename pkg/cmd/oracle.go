package cmd

import (
	"log/slog"

	"github.com/sopflow/sopflow/pkg/config"
	"github.com/sopflow/sopflow/pkg/tags"
)

// NewOracle builds the tag oracle from settings. Without a configured
// server the mock oracle serves simulated readings, so execution works in
// environments with no live instrumentation.
func NewOracle(logger *slog.Logger, settings config.OracleSettings) tags.Oracle {
	if settings.URL == "" {
		logger.Info("No tag server configured, serving simulated readings")

		return tags.NewMockOracle()
	}

	logger.Info("Using tag server", "url", settings.URL)

	return tags.NewWebOracle(settings.URL, settings.RequestTimeout)
}
