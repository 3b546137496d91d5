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

// ExecutionRepository handles execution record database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts an execution record.
func (r *ExecutionRepository) Save(ctx context.Context, record *models.ExecutionRecord) error {
	id := record.ID()
	if id == "" {
		return persistence.NewStoreError("SaveExecution", id, persistence.ErrInvalidID)
	}

	result, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal execution result: %w", err)
	}

	executionContext, err := marshalNullable(record.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	answers, err := marshalNullable(record.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	query := `
		INSERT INTO executions (id, flow_id, status, result, context, answers, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , result = EXCLUDED.result
		  , context = EXCLUDED.context
		  , answers = EXCLUDED.answers
		  , error_message = EXCLUDED.error_message
		  , completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		id,
		record.Result.FlowID,
		string(record.Result.Status),
		string(result),
		executionContext,
		answers,
		sql.NullString{String: record.Result.Error, Valid: record.Result.Error != ""},
		record.Result.StartedAt,
		record.Result.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", id, err)
	}

	return nil
}

// GetByID returns the execution record with the given id or ErrExecutionNotFound.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT result, context, answers FROM executions WHERE id = $1`, id)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution %s: %w", id, err)
	}

	return record, nil
}

// GetByFlow returns the records of a flow ordered by start time.
func (r *ExecutionRepository) GetByFlow(ctx context.Context, flowID string) ([]*models.ExecutionRecord, error) {
	query := `
		SELECT result, context, answers
		FROM executions
		WHERE flow_id = $1
		ORDER BY started_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.ExecutionRecord, error) {
	var (
		result           []byte
		executionContext []byte
		answers          []byte
	)

	if err := row.Scan(&result, &executionContext, &answers); err != nil {
		return nil, err
	}

	record := &models.ExecutionRecord{}

	if err := json.Unmarshal(result, &record.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	if len(executionContext) > 0 {
		if err := json.Unmarshal(executionContext, &record.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}

	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &record.Answers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
		}
	}

	return record, nil
}

// marshalNullable encodes v as JSON, mapping nil values to SQL NULL.
func marshalNullable[T any](v T) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}

	if string(data) == "null" {
		return sql.NullString{}, nil
	}

	return sql.NullString{String: string(data), Valid: true}, nil
}
