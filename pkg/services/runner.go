package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/inboxflow/pkg/channels"
	"github.com/dukex/inboxflow/pkg/eventbus"
	"github.com/dukex/inboxflow/pkg/events"
	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/persistence"
	"github.com/dukex/inboxflow/pkg/workflow"
)

// Inbound event types understood by flow triggers.
const (
	InboundEventDM           = "dm"
	InboundEventComment      = "comment"
	InboundEventStoryMention = "story_mention"
	InboundEventNewFollower  = "new_follower"
)

// Engine is the part of *workflow.Executor the runner drives.
type Engine interface {
	Run(ctx context.Context, flow *models.Flow, contact *models.Contact, channelID string, channelType models.ChannelType, triggerData map[string]any) *models.ExecutionRecord
	Resume(ctx context.Context, flow *models.Flow, record *models.ExecutionRecord, answer any) (*models.ExecutionRecord, error)
}

// Runner executes stored flows and keeps their execution records.
type Runner struct {
	engine     Engine
	flows      persistence.FlowRepository
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	logger     *slog.Logger

	mu       sync.Mutex
	resuming map[string]struct{}
}

// NewRunner creates a runner. A nil publisher drops lifecycle events.
func NewRunner(
	logger *slog.Logger,
	engine Engine,
	flows persistence.FlowRepository,
	executions persistence.ExecutionRepository,
	publisher eventbus.EventPublisher,
) *Runner {
	if publisher == nil {
		publisher = eventbus.Noop{}
	}

	return &Runner{
		engine:     engine,
		flows:      flows,
		executions: executions,
		publisher:  publisher,
		logger:     logger.With("module", "runner"),
		resuming:   make(map[string]struct{}),
	}
}

// ExecuteRequest starts one flow for one contact.
type ExecuteRequest struct {
	FlowID      string             `json:"flowId"      validate:"required"`
	Contact     *models.Contact    `json:"contact"     validate:"required"`
	ChannelID   string             `json:"channelId"   validate:"required"`
	Channel     models.ChannelType `json:"channel"     validate:"required,oneof=instagram messenger whatsapp telegram"`
	TriggerData map[string]any     `json:"triggerData"`
}

// InboundRequest is a raw webhook payload received on a channel.
type InboundRequest struct {
	Channel   models.ChannelType `json:"channel"   validate:"required,oneof=instagram messenger whatsapp telegram"`
	ChannelID string             `json:"channelId" validate:"required"`
	Payload   map[string]any     `json:"payload"   validate:"required"`
	// Event defaults to a direct message.
	Event   string          `json:"event"   validate:"omitempty,oneof=dm comment story_mention new_follower"`
	PostID  string          `json:"postId"`
	Contact *models.Contact `json:"contact"`
}

// HealthCheck checks the health of the persistence layer.
func (r *Runner) HealthCheck(ctx context.Context) (string, bool) {
	checker, ok := r.executions.(interface{ HealthCheck(context.Context) error })
	if !ok {
		return "Persistence layer is healthy", true
	}

	if err := checker.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Execute loads the flow, runs it and stores the record, skipped runs included.
func (r *Runner) Execute(ctx context.Context, req ExecuteRequest) (*models.ExecutionRecord, error) {
	if req.Contact == nil {
		return nil, &ServiceError{Op: "Execute", Err: ErrContactMissing}
	}

	flow, err := r.flows.FlowByID(ctx, req.FlowID)
	if err != nil {
		return nil, err
	}

	return r.run(ctx, flow, req.Contact, req.ChannelID, req.Channel, req.TriggerData, true)
}

// Execution returns a stored execution record.
func (r *Runner) Execution(ctx context.Context, executionID string) (*models.ExecutionRecord, error) {
	return r.executions.ExecutionByID(ctx, executionID)
}

// Executions returns the stored records of a flow.
func (r *Runner) Executions(ctx context.Context, flowID string) ([]*models.ExecutionRecord, error) {
	if _, err := r.flows.FlowByID(ctx, flowID); err != nil {
		return nil, err
	}

	return r.executions.ExecutionsByFlow(ctx, flowID)
}

// claim marks executionID as being resumed. It returns false if another caller holds it.
func (r *Runner) claim(executionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.resuming[executionID]; busy {
		return false
	}

	r.resuming[executionID] = struct{}{}

	return true
}

func (r *Runner) release(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.resuming, executionID)
}

func notWaiting(executionID string) error {
	return &ServiceError{Op: "Resume", Message: "execution " + executionID + " is not waiting for input", Err: ErrNotWaiting}
}

// Resume answers the question a stored execution is waiting on and continues it.
// Only one caller at a time may continue an execution; the others get ErrNotWaiting.
// The record is read after the claim, so an execution finished by the previous holder
// is no longer waiting.
func (r *Runner) Resume(ctx context.Context, executionID string, answer any) (*models.ExecutionRecord, error) {
	if !r.claim(executionID) {
		return nil, notWaiting(executionID)
	}
	defer r.release(executionID)

	record, err := r.executions.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if record.Result == nil || record.Result.Status != models.ExecutionStatusWaitingInput || record.Result.Pending == nil {
		return nil, notWaiting(executionID)
	}

	flow, err := r.flows.FlowByID(ctx, record.Result.FlowID)
	if err != nil {
		return nil, err
	}

	questionID := record.Result.Pending.QuestionID

	updated, err := r.engine.Resume(ctx, flow, record, answer)
	if err != nil {
		return nil, err
	}

	r.publish(ctx, updated.ID(), events.ExecutionResumed{
		BaseEvent:  r.baseEvent(events.ExecutionResumedEvent, updated),
		QuestionID: questionID,
	})

	if err := r.save(ctx, updated); err != nil {
		return nil, err
	}

	return updated, nil
}

// HandleInbound normalizes a webhook payload. A contact waiting for input on this channel
// has the message applied as its answer; otherwise every flow is offered the event and
// the runs whose trigger matched are returned.
func (r *Runner) HandleInbound(ctx context.Context, req InboundRequest) ([]*models.ExecutionRecord, error) {
	msg, err := channels.NormalizeInboundMessage(req.Channel, req.Payload)
	if err != nil {
		return nil, err
	}

	contact := &models.Contact{ID: msg.UserID}
	if req.Contact != nil {
		contact = req.Contact.Clone()
	}

	if contact.ID == "" {
		return nil, &ServiceError{Op: "HandleInbound", Message: "inbound payload has no sender", Err: ErrInvalidRequest}
	}

	if !msg.Timestamp.IsZero() {
		contact.LastInboundAt = &msg.Timestamp
	}

	logger := r.logger.With("channel", req.Channel, "user_id", contact.ID)

	flows, err := r.flows.Flows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	waiting, err := r.waitingRecord(ctx, flows, contact.ID, req.Channel)
	if err != nil {
		return nil, err
	}

	if waiting != nil {
		logger.InfoContext(ctx, "Applying inbound message as answer", "execution_id", waiting.ID())

		record, err := r.Resume(ctx, waiting.ID(), answerOf(msg))
		if errors.Is(err, workflow.ErrInvalidAnswer) {
			logger.InfoContext(ctx, "Inbound answer rejected", "execution_id", waiting.ID(), "error", err)

			return []*models.ExecutionRecord{waiting}, nil
		}

		if err != nil {
			return nil, err
		}

		return []*models.ExecutionRecord{record}, nil
	}

	triggerData := triggerDataOf(req, msg)
	records := make([]*models.ExecutionRecord, 0)

	for _, flow := range flows {
		record, err := r.run(ctx, flow, contact, req.ChannelID, req.Channel, triggerData, false)
		if err != nil {
			return records, err
		}

		if record.Result.Status != models.ExecutionStatusSkipped {
			records = append(records, record)
		}
	}

	logger.DebugContext(ctx, "Inbound event handled", "flows", len(flows), "runs", len(records))

	return records, nil
}

func (r *Runner) run(
	ctx context.Context,
	flow *models.Flow,
	contact *models.Contact,
	channelID string,
	channel models.ChannelType,
	triggerData map[string]any,
	keepSkipped bool,
) (*models.ExecutionRecord, error) {
	record := r.engine.Run(ctx, flow, contact, channelID, channel, triggerData)

	if record.Result.Status == models.ExecutionStatusSkipped && !keepSkipped {
		return record, nil
	}

	r.publish(ctx, record.ID(), events.ExecutionStarted{
		BaseEvent:   r.baseEvent(events.ExecutionStartedEvent, record),
		ChannelID:   channelID,
		TriggerData: triggerData,
	})

	if err := r.save(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// save stores the record and announces the state it ended in.
func (r *Runner) save(ctx context.Context, record *models.ExecutionRecord) error {
	if err := r.executions.SaveExecution(ctx, record); err != nil {
		return fmt.Errorf("failed to save execution %s: %w", record.ID(), err)
	}

	if event := events.ForRecord(record); event != nil {
		r.publish(ctx, record.ID(), event)
	}

	return nil
}

// publish never fails a run; a lost event is logged.
func (r *Runner) publish(ctx context.Context, key string, event events.Event) {
	if err := r.publisher.Publish(ctx, key, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "execution_id", key, "error", err)
	}
}

func (r *Runner) baseEvent(eventType events.EventType, record *models.ExecutionRecord) events.BaseEvent {
	base := events.NewBaseEvent(eventType, record.Result.FlowID, record.ID())
	if record.Context != nil {
		base.UserID = record.Context.UserID
		base.Channel = record.Context.ChannelType
	}

	return base
}

func (r *Runner) waitingRecord(ctx context.Context, flows []*models.Flow, userID string, channel models.ChannelType) (*models.ExecutionRecord, error) {
	var latest *models.ExecutionRecord

	for _, flow := range flows {
		records, err := r.executions.ExecutionsByFlow(ctx, flow.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list executions of %s: %w", flow.ID, err)
		}

		for _, record := range records {
			if record.Result.Status != models.ExecutionStatusWaitingInput || record.Context == nil {
				continue
			}

			if record.Context.UserID != userID || record.Context.ChannelType != channel {
				continue
			}

			if latest == nil || record.Result.StartedAt.After(latest.Result.StartedAt) {
				latest = record
			}
		}
	}

	return latest, nil
}

func triggerDataOf(req InboundRequest, msg models.InboundMessage) map[string]any {
	event := req.Event
	if event == "" {
		event = InboundEventDM
	}

	data := map[string]any{
		workflow.TriggerDataType:    event,
		workflow.TriggerDataMessage: msg.Text,
		"userId":                    msg.UserID,
		"inboundType":               string(msg.Type),
		"timestamp":                 msg.Timestamp,
	}

	if msg.Payload != "" {
		data["payload"] = msg.Payload
	}

	if msg.Media != nil {
		data["media"] = map[string]any{"type": string(msg.Media.Type), "url": msg.Media.URL}
	}

	if req.PostID != "" {
		data[workflow.TriggerDataPostID] = req.PostID
	}

	return data
}

// answerOf prefers a button payload over the visible text.
func answerOf(msg models.InboundMessage) any {
	if msg.Type == models.InboundPostbackType && msg.Payload != "" {
		return msg.Payload
	}

	return msg.Text
}
