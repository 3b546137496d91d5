package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/persistence"
)

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

// GetAll returns all flows from the database.
func (r *FlowRepository) GetAll(ctx context.Context) ([]*models.Flow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, definition FROM flows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		var (
			id         string
			definition []byte
		)

		if err := rows.Scan(&id, &definition); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flow, err := models.ParseFlow(definition)
		if err != nil {
			return nil, fmt.Errorf("failed to load flow %s: %w", id, err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

// GetByID returns the flow with the given id or ErrFlowNotFound.
func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	var definition []byte

	err := r.db.QueryRowContext(ctx, `SELECT definition FROM flows WHERE id = $1`, id).Scan(&definition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("FlowByID", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to query flow %s: %w", id, err)
	}

	flow, err := models.ParseFlow(definition)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow %s: %w", id, err)
	}

	return flow, nil
}

// Save validates and upserts a flow.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	if flow.ID == "" {
		return persistence.NewStoreError("SaveFlow", flow.ID, persistence.ErrInvalidID)
	}

	if err := flow.Validate(); err != nil {
		return persistence.NewStoreError("SaveFlow", flow.ID, err)
	}

	definition, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow %s: %w", flow.ID, err)
	}

	query := `
		INSERT INTO flows (id, name, definition)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , definition = EXCLUDED.definition
		  , updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query, flow.ID, flow.Name, string(definition))
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", flow.ID, err)
	}

	return nil
}

// Delete removes a flow. Execution records of the flow are kept.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("DeleteFlow", id, persistence.ErrFlowNotFound)
	}

	return nil
}
