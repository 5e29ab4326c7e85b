// Package postgresql provides PostgreSQL-backed persistence. Session
// writes use an optimistic version check (UPDATE ... WHERE version = $n)
// so concurrent writers lose cleanly instead of interleaving.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/sopflow/sopflow/pkg/persistence"
	"github.com/sopflow/sopflow/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db         *sql.DB
	logger     *slog.Logger
	processes  *ProcessRepository
	sessions   *SessionRepository
	heartbeats *HeartbeatRepository
}

// NewPersistence opens the database named by databaseURL, runs pending
// migrations and returns the ready persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	manager := sqlbase.NewMigrationManager(logger, db, migrations)
	if err := manager.RunMigrations(ctx); err != nil {
		return nil, err
	}

	sessions := &SessionRepository{db: db}

	return &Persistence{
		db:         db,
		logger:     logger,
		processes:  &ProcessRepository{db: db},
		sessions:   sessions,
		heartbeats: &HeartbeatRepository{db: db},
	}, nil
}

func (p *Persistence) Processes() persistence.ProcessRepository {
	return p.processes
}

func (p *Persistence) Sessions() persistence.SessionRepository {
	return p.sessions
}

func (p *Persistence) Heartbeats() persistence.HeartbeatRepository {
	return p.heartbeats
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}
