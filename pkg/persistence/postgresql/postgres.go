// Package postgresql provides PostgreSQL persistence for workflow
// instances and escalation wake-ups.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/bloomcare/careflow/pkg/persistence"
	"github.com/bloomcare/careflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	instanceRepo   *InstanceRepository
	escalationRepo *EscalationRepository
}

// NewPersistence connects, runs migrations and returns a ready store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:             database,
		logger:         logger,
		instanceRepo:   NewInstanceRepository(database, logger),
		escalationRepo: NewEscalationRepository(database, logger),
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

func (p *Persistence) Instances() persistence.InstanceRepository {
	return p.instanceRepo
}

func (p *Persistence) Escalations() persistence.EscalationRepository {
	return p.escalationRepo
}

// HealthCheck verifies the database connection is alive.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
