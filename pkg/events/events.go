// Package events defines the execution lifecycle notifications published by the runner.
package events

import (
	"time"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every execution lifecycle event.
const Topic = "inboxflow.executions"

// ReasonTriggerMismatch is the skip reason of runs whose trigger ignored the inbound event.
const ReasonTriggerMismatch = "trigger did not match"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent      EventType = "execution.started"
	ExecutionCompletedEvent    EventType = "execution.completed"
	ExecutionFailedEvent       EventType = "execution.failed"
	ExecutionSkippedEvent      EventType = "execution.skipped"
	ExecutionWaitingInputEvent EventType = "execution.waiting_input"
	ExecutionResumedEvent      EventType = "execution.resumed"
)

// Event is anything that can be published on the bus.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID          string             `json:"id"`
	Type        EventType          `json:"type"`
	Timestamp   time.Time          `json:"timestamp"`
	FlowID      string             `json:"flow_id"`
	ExecutionID string             `json:"execution_id"`
	UserID      string             `json:"user_id,omitempty"`
	Channel     models.ChannelType `json:"channel,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	ChannelID   string         `json:"channel_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Steps    int           `json:"steps"`
	Duration time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Error  string `json:"error"`
	NodeID string `json:"node_id,omitempty"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionSkipped struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (e ExecutionSkipped) GetType() EventType {
	return ExecutionSkippedEvent
}

type ExecutionWaitingInput struct {
	BaseEvent

	Pending *models.PendingInput `json:"pending"`
}

func (e ExecutionWaitingInput) GetType() EventType {
	return ExecutionWaitingInputEvent
}

type ExecutionResumed struct {
	BaseEvent

	QuestionID string `json:"question_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

func NewBaseEvent(eventType EventType, flowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		FlowID:      flowID,
		ExecutionID: executionID,
	}
}

// ForRecord returns the event describing the state a record ended in. A running record
// has no terminal event and yields nil.
func ForRecord(record *models.ExecutionRecord) Event {
	result := record.Result
	if result == nil {
		return nil
	}

	base := func(eventType EventType) BaseEvent {
		event := NewBaseEvent(eventType, result.FlowID, result.ExecutionID)
		if record.Context != nil {
			event.UserID = record.Context.UserID
			event.Channel = record.Context.ChannelType
		}

		return event
	}

	switch result.Status {
	case models.ExecutionStatusCompleted:
		event := ExecutionCompleted{BaseEvent: base(ExecutionCompletedEvent), Steps: len(result.Steps)}
		if result.CompletedAt != nil {
			event.Duration = result.CompletedAt.Sub(result.StartedAt)
		}

		return event
	case models.ExecutionStatusFailed:
		event := ExecutionFailed{BaseEvent: base(ExecutionFailedEvent), Error: result.Error}
		if len(result.Steps) > 0 {
			event.NodeID = result.Steps[len(result.Steps)-1].NodeID
		}

		return event
	case models.ExecutionStatusSkipped:
		reason := result.Error
		if reason == "" {
			reason = ReasonTriggerMismatch
		}

		return ExecutionSkipped{BaseEvent: base(ExecutionSkippedEvent), Reason: reason}
	case models.ExecutionStatusWaitingInput:
		return ExecutionWaitingInput{BaseEvent: base(ExecutionWaitingInputEvent), Pending: result.Pending}
	default:
		return nil
	}
}
