package workflow

import (
	"log/slog"
	"time"

	"github.com/dukex/inboxflow/pkg/models"
)

// run is the state owned by a single execution.
type run struct {
	flow    *models.Flow
	ectx    *models.ExecutionContext
	result  *models.ExecutionResult
	answers map[string]any
	visited map[string]bool
	logger  *slog.Logger
}

// appendStep records a visit to node. The returned pointer is valid until the next append.
func (r *run) appendStep(node *models.Node, at time.Time) *models.ExecutionStep {
	r.result.Steps = append(r.result.Steps, models.ExecutionStep{
		NodeID:    node.ID,
		NodeType:  node.Type,
		Timestamp: at,
	})

	return &r.result.Steps[len(r.result.Steps)-1]
}

func (r *run) storeAnswer(question models.Question, value any) {
	key := question.SaveKey()

	r.answers[key] = value
	r.ectx.Variables[key] = value
}

func (r *run) record() *models.ExecutionRecord {
	return &models.ExecutionRecord{
		Result:  r.result,
		Context: r.ectx,
		Answers: r.answers,
	}
}
