package services

import (
	"context"
	"fmt"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/persistence"
)

// Flows manages flow definitions.
type Flows struct {
	repository persistence.FlowRepository
}

// NewFlows creates a new flow service.
func NewFlows(repository persistence.FlowRepository) *Flows {
	return &Flows{repository: repository}
}

// List returns every stored flow.
func (f *Flows) List(ctx context.Context) ([]*models.Flow, error) {
	return f.repository.Flows(ctx)
}

// Get returns one flow.
func (f *Flows) Get(ctx context.Context, id string) (*models.Flow, error) {
	return f.repository.FlowByID(ctx, id)
}

// Save validates a raw flow document and stores it under id. The document id, when set,
// must equal id.
func (f *Flows) Save(ctx context.Context, id string, document []byte) (*models.Flow, error) {
	flow, err := models.ParseFlow(document)
	if err != nil {
		return nil, &ServiceError{Op: "SaveFlow", Message: err.Error(), Err: ErrInvalidRequest}
	}

	if flow.ID != id {
		return nil, NewValidationError("SaveFlow", fmt.Sprintf("flow id %q does not match %q", flow.ID, id))
	}

	if err := f.repository.SaveFlow(ctx, flow); err != nil {
		return nil, err
	}

	return flow, nil
}

// Delete removes a flow.
func (f *Flows) Delete(ctx context.Context, id string) error {
	return f.repository.DeleteFlow(ctx, id)
}
