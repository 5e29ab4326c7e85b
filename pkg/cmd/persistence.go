// Package cmd provides common initialization for command-line entrypoints.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sopflow/sopflow/pkg/persistence"
	"github.com/sopflow/sopflow/pkg/persistence/file"
	"github.com/sopflow/sopflow/pkg/persistence/postgresql"
	"github.com/sopflow/sopflow/pkg/persistence/redis"
)

// NewPersistence selects the persistence backend by URL scheme:
// postgres://, redis://, or a filesystem path (optionally file://).
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		p, err := redis.NewPersistence(ctx, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}
