// Package file provides file-based persistence for flows and execution records.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/persistence"
)

const (
	flowsDir      = "flows"
	executionsDir = "executions"
)

// Persistence stores every flow and execution record as a JSON document under root.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a file store rooted at root. A "file://" prefix is accepted.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.TrimPrefix(root, "file://")}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); err != nil {
		return fmt.Errorf("file store root unavailable: %w", err)
	}

	return nil
}

// Flows returns every stored flow, ordered by id.
func (p *Persistence) Flows(_ context.Context) ([]*models.Flow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(p.root, flowsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Flow{}, nil
		}

		return nil, fmt.Errorf("failed to read flows directory: %w", err)
	}

	flows := make([]*models.Flow, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		flow, err := p.readFlow(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		flows = append(flows, flow)
	}

	slices.SortFunc(flows, func(a, b *models.Flow) int {
		return strings.Compare(a.ID, b.ID)
	})

	return flows, nil
}

// FlowByID reads and validates a single flow document.
func (p *Persistence) FlowByID(_ context.Context, id string) (*models.Flow, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewStoreError("FlowByID", id, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.readFlow(id)
}

// SaveFlow validates and writes a flow document.
func (p *Persistence) SaveFlow(_ context.Context, flow *models.Flow) error {
	if err := validateID(flow.ID); err != nil {
		return persistence.NewStoreError("SaveFlow", flow.ID, err)
	}

	if err := flow.Validate(); err != nil {
		return persistence.NewStoreError("SaveFlow", flow.ID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.write(flowsDir, flow.ID, flow)
}

// DeleteFlow removes a flow document.
func (p *Persistence) DeleteFlow(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return persistence.NewStoreError("DeleteFlow", id, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(p.path(flowsDir, id))
	if os.IsNotExist(err) {
		return persistence.NewStoreError("DeleteFlow", id, persistence.ErrFlowNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}

	return nil
}

// SaveExecution writes an execution record, replacing any previous version.
func (p *Persistence) SaveExecution(_ context.Context, record *models.ExecutionRecord) error {
	id := record.ID()
	if err := validateID(id); err != nil {
		return persistence.NewStoreError("SaveExecution", id, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.write(executionsDir, id, record)
}

// ExecutionByID reads an execution record.
func (p *Persistence) ExecutionByID(_ context.Context, id string) (*models.ExecutionRecord, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewStoreError("ExecutionByID", id, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.readExecution(id)
}

// ExecutionsByFlow returns the records of a flow, oldest first.
func (p *Persistence) ExecutionsByFlow(_ context.Context, flowID string) ([]*models.ExecutionRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(p.root, executionsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.ExecutionRecord{}, nil
		}

		return nil, fmt.Errorf("failed to read executions directory: %w", err)
	}

	records := make([]*models.ExecutionRecord, 0)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		record, err := p.readExecution(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		if record.Result.FlowID == flowID {
			records = append(records, record)
		}
	}

	slices.SortFunc(records, func(a, b *models.ExecutionRecord) int {
		return a.Result.StartedAt.Compare(b.Result.StartedAt)
	})

	return records, nil
}

func (p *Persistence) readFlow(id string) (*models.Flow, error) {
	data, err := os.ReadFile(p.path(flowsDir, id)) // #nosec G304 -- id is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("FlowByID", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to read flow %s: %w", id, err)
	}

	flow, err := models.ParseFlow(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow %s: %w", id, err)
	}

	return flow, nil
}

func (p *Persistence) readExecution(id string) (*models.ExecutionRecord, error) {
	data, err := os.ReadFile(p.path(executionsDir, id)) // #nosec G304 -- id is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	var record models.ExecutionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	if record.Result == nil {
		return nil, fmt.Errorf("execution %s has no result", id)
	}

	return &record, nil
}

func (p *Persistence) write(dir, id string, value any) error {
	if err := os.MkdirAll(filepath.Join(p.root, dir), 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	if err := os.WriteFile(p.path(dir, id), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}

	return nil
}

func (p *Persistence) path(dir, id string) string {
	return filepath.Join(p.root, dir, id+".json")
}

// validateID rejects ids that could escape the store directory.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", persistence.ErrInvalidID)
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q contains invalid characters", persistence.ErrInvalidID, id)
	}

	return nil
}

var _ persistence.Persistence = (*Persistence)(nil)
