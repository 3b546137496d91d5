// Package persistence stores flow definitions and execution records.
package persistence

import (
	"context"

	"github.com/dukex/inboxflow/pkg/models"
)

// FlowRepository supplies flow definitions. Flows are never modified by executions.
type FlowRepository interface {
	Flows(ctx context.Context) ([]*models.Flow, error)
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	SaveFlow(ctx context.Context, flow *models.Flow) error
	DeleteFlow(ctx context.Context, id string) error
}

// ExecutionRepository stores execution records, including the context of runs waiting
// for input.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, record *models.ExecutionRecord) error
	ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error)
	ExecutionsByFlow(ctx context.Context, flowID string) ([]*models.ExecutionRecord, error)
}

// Persistence is a storage backend.
type Persistence interface {
	FlowRepository
	ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
