// Package postgresql provides PostgreSQL persistence for flows and execution records.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/persistence"
	"github.com/dukex/inboxflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	flowRepo       *FlowRepository
	executionsRepo *ExecutionRepository
}

// NewPersistence connects to databaseURL and brings the schema up to date.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgresql")

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		flowRepo:       NewFlowRepository(database, logger),
		executionsRepo: NewExecutionRepository(database, logger),
	}, nil
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

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Flows returns all flows ordered by id.
func (p *Persistence) Flows(ctx context.Context) ([]*models.Flow, error) {
	return p.flowRepo.GetAll(ctx)
}

// FlowByID returns a flow by its id.
func (p *Persistence) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	return p.flowRepo.GetByID(ctx, id)
}

// SaveFlow inserts or replaces a flow.
func (p *Persistence) SaveFlow(ctx context.Context, flow *models.Flow) error {
	return p.flowRepo.Save(ctx, flow)
}

// DeleteFlow removes a flow.
func (p *Persistence) DeleteFlow(ctx context.Context, id string) error {
	return p.flowRepo.Delete(ctx, id)
}

// SaveExecution inserts or replaces an execution record.
func (p *Persistence) SaveExecution(ctx context.Context, record *models.ExecutionRecord) error {
	return p.executionsRepo.Save(ctx, record)
}

// ExecutionByID returns an execution record by its id.
func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	return p.executionsRepo.GetByID(ctx, id)
}

// ExecutionsByFlow returns the records of a flow, oldest first.
func (p *Persistence) ExecutionsByFlow(ctx context.Context, flowID string) ([]*models.ExecutionRecord, error) {
	return p.executionsRepo.GetByFlow(ctx, flowID)
}

var _ persistence.Persistence = (*Persistence)(nil)
