// Package workflow walks flow graphs for inbound events and drives the channel, compliance,
// AI and HTTP collaborators along the way.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dukex/inboxflow/pkg/ai"
	"github.com/dukex/inboxflow/pkg/channels"
	"github.com/dukex/inboxflow/pkg/compliance"
	"github.com/dukex/inboxflow/pkg/httpcall"
	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageSender delivers normalized messages. *channels.Dispatcher implements it.
type MessageSender interface {
	SendMessage(ctx context.Context, channel models.ChannelType, channelID, userID string, msg models.NormalizedMessage) channels.SendResult
}

// HTTPDoer performs the requests of HTTP nodes. *httpcall.Client implements it.
type HTTPDoer interface {
	Do(ctx context.Context, request httpcall.Request) (*httpcall.Response, error)
}

// Dependencies are the collaborators of an Executor. Nil fields get defaults: an empty
// dispatcher, the 24h window policy, the passthrough AI service, a default HTTP client
// and answers read from the trigger data.
type Dependencies struct {
	Channels   MessageSender
	Compliance compliance.Checker
	AI         ai.Service
	HTTP       HTTPDoer
	Answers    AnswerProvider
}

// Executor runs flows. It holds no per-run state and is safe for concurrent use.
type Executor struct {
	deps   Dependencies
	logger *slog.Logger
	tracer trace.Tracer

	now    func() time.Time
	random func() float64
	sleep  func(ctx context.Context, d time.Duration) error
	newID  func() string
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock replaces the clock used for timestamps and time rules.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithRandom replaces the source of random rules. It must return values in [0, 1).
func WithRandom(random func() float64) Option {
	return func(e *Executor) {
		e.random = random
	}
}

// WithSleep replaces the wait used by delay actions.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// WithTracer sets the tracer for run and node spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// WithIDGenerator replaces the execution id generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Executor) {
		e.newID = newID
	}
}

// NewExecutor creates an executor.
func NewExecutor(logger *slog.Logger, deps Dependencies, opts ...Option) *Executor {
	logger = logger.With("module", "flow_executor")

	if deps.Channels == nil {
		deps.Channels = channels.NewDispatcher(logger, nil)
	}

	if deps.Compliance == nil {
		deps.Compliance = compliance.NewWindowPolicy()
	}

	if deps.AI == nil {
		deps.AI = ai.Passthrough{}
	}

	if deps.HTTP == nil {
		deps.HTTP = httpcall.NewClient(nil)
	}

	if deps.Answers == nil {
		deps.Answers = TriggerAnswers{}
	}

	executor := &Executor{
		deps:   deps,
		logger: logger,
		tracer: otelhelper.Tracer(),
		now:    time.Now,
		random: rand.Float64,
		sleep:  sleepContext,
		newID:  generateExecutionID,
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs flow for an inbound event and returns the execution trace.
func (e *Executor) Execute(
	ctx context.Context,
	flow *models.Flow,
	contact *models.Contact,
	channelID string,
	channelType models.ChannelType,
	triggerData map[string]any,
) *models.ExecutionResult {
	return e.Run(ctx, flow, contact, channelID, channelType, triggerData).Result
}

// Run is Execute returning the full record, including the context needed to resume a
// run that stopped with status waiting_input.
func (e *Executor) Run(
	ctx context.Context,
	flow *models.Flow,
	contact *models.Contact,
	channelID string,
	channelType models.ChannelType,
	triggerData map[string]any,
) *models.ExecutionRecord {
	contact = contact.Clone()
	executionID := e.newID()

	r := &run{
		flow: flow,
		ectx: &models.ExecutionContext{
			ExecutionID: executionID,
			FlowID:      flow.ID,
			UserID:      contact.ID,
			Contact:     contact,
			ChannelID:   channelID,
			ChannelType: channelType,
			TriggerData: triggerData,
			Variables:   contact.Variables(),
		},
		result: &models.ExecutionResult{
			ExecutionID: executionID,
			FlowID:      flow.ID,
			Status:      models.ExecutionStatusRunning,
			Steps:       []models.ExecutionStep{},
			StartedAt:   e.now(),
		},
		answers: map[string]any{},
		visited: map[string]bool{},
		logger: e.logger.With(
			"execution_id", executionID,
			"flow_id", flow.ID,
			"user_id", contact.ID,
			"channel", channelType,
		),
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "flow.execute",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.FlowIDKey, flow.ID),
		attribute.String(otelhelper.ChannelKey, string(channelType)),
	)
	defer span.End()

	r.logger.InfoContext(ctx, "Starting flow execution")

	err := e.start(ctx, r)
	e.finish(ctx, r, err, span)

	return r.record()
}

// Resume feeds the answer to the question a waiting record is paused on and continues
// the run. The record is updated in place and returned. An answer that fails
// extraction or validation is rejected with ErrInvalidAnswer and leaves the record
// untouched.
func (e *Executor) Resume(ctx context.Context, flow *models.Flow, record *models.ExecutionRecord, answer any) (*models.ExecutionRecord, error) {
	if record == nil || record.Result == nil || record.Context == nil {
		return nil, errors.New("execution record is incomplete")
	}

	pending := record.Result.Pending
	if record.Result.Status != models.ExecutionStatusWaitingInput || pending == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotWaiting, record.ID(), record.Result.Status)
	}

	if flow.ID != record.Result.FlowID {
		return nil, fmt.Errorf("execution %s belongs to flow %s, not %s", record.ID(), record.Result.FlowID, flow.ID)
	}

	node := flow.NodeByID(pending.NodeID)
	if node == nil {
		return nil, fmt.Errorf("pending node %s not found in flow %s", pending.NodeID, flow.ID)
	}

	config, ok := node.Config.(*models.QuestionnaireConfig)
	if !ok || pending.QuestionIndex < 0 || pending.QuestionIndex >= len(config.Questions) {
		return nil, fmt.Errorf("pending node %s has no question %d", node.ID, pending.QuestionIndex)
	}

	question := config.Questions[pending.QuestionIndex]

	value, err := e.processAnswer(ctx, question, answer)
	if err != nil {
		return nil, err
	}

	r := e.restore(flow, record)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "flow.resume",
		attribute.String(otelhelper.ExecutionIDKey, r.result.ExecutionID),
		attribute.String(otelhelper.FlowIDKey, flow.ID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
	)
	defer span.End()

	r.logger.InfoContext(ctx, "Resuming flow execution", "node_id", node.ID, "question_id", question.ID)

	r.result.Status = models.ExecutionStatusRunning
	r.result.Pending = nil
	r.ectx.CurrentNodeID = node.ID

	step := r.appendStep(node, e.now())
	step.Action = models.StepActionAnswerReceived
	step.Result = map[string]any{"questionId": question.ID, "answer": value}

	r.storeAnswer(question, value)

	next, err := e.askQuestions(ctx, r, node, config, step, pending.QuestionIndex+1)
	if err != nil {
		step.Error = err.Error()
	} else if r.result.Status == models.ExecutionStatusRunning {
		err = e.walk(ctx, r, next)
	}

	e.finish(ctx, r, err, span)

	return r.record(), nil
}

func (e *Executor) start(ctx context.Context, r *run) error {
	trigger := r.flow.TriggerNode()
	if trigger == nil {
		return ErrNoTriggerNode
	}

	config, _ := trigger.Config.(*models.TriggerConfig)
	if !MatchTrigger(config, r.ectx.TriggerData, r.ectx.ChannelType) {
		r.logger.DebugContext(ctx, "Trigger did not match inbound event", "trigger_id", trigger.ID)
		r.result.Status = models.ExecutionStatusSkipped

		return nil
	}

	next := r.flow.NextNodeID(trigger.ID)
	if next == "" {
		return ErrNoTriggerEdge
	}

	return e.walk(ctx, r, next)
}

// walk executes nodes until the graph ends, a node pauses the run or a node fails.
func (e *Executor) walk(ctx context.Context, r *run, nodeID string) error {
	for nodeID != "" {
		node := r.flow.NodeByID(nodeID)
		if node == nil {
			r.logger.DebugContext(ctx, "Node not found, flow ended", "node_id", nodeID)

			return nil
		}

		if r.visited[node.ID] {
			return fmt.Errorf("%w at node %s", ErrCycleDetected, node.ID)
		}

		r.visited[node.ID] = true
		r.ectx.CurrentNodeID = node.ID

		next, err := e.executeNode(ctx, r, node)
		if err != nil {
			return err
		}

		if r.result.Status == models.ExecutionStatusWaitingInput {
			return nil
		}

		nodeID = next
	}

	return nil
}

func (e *Executor) executeNode(ctx context.Context, r *run, node *models.Node) (string, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "flow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	logger := r.logger.With("node_id", node.ID, "node_type", node.Type)
	logger.DebugContext(ctx, "Executing node")

	step := r.appendStep(node, e.now())

	var (
		next string
		err  error
	)

	switch config := node.Config.(type) {
	case *models.MessageConfig:
		next, err = e.executeMessage(ctx, r, node, config, step)
	case *models.QuestionnaireConfig:
		next, err = e.askQuestions(ctx, r, node, config, step, 0)
	case *models.ConditionConfig:
		next, err = e.executeCondition(ctx, r, node, config, step)
	case *models.HTTPConfig:
		next, err = e.executeHTTP(ctx, r, node, config, step)
	case *models.TriggerConfig:
		err = fmt.Errorf("%w at node %s", ErrCycleDetected, node.ID)
	case nil:
		err = fmt.Errorf("node %s has no %s config", node.ID, node.Type)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownNodeType, node.Type)
	}

	span.SetAttributes(attribute.String(otelhelper.StepActionKey, step.Action))

	if err != nil {
		step.Error = err.Error()
		otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, node.ID))
		logger.ErrorContext(ctx, "Node execution failed", "error", err)

		return "", err
	}

	logger.DebugContext(ctx, "Node executed", "action", step.Action, "next_node_id", next)

	return next, nil
}

func (e *Executor) finish(ctx context.Context, r *run, err error, span trace.Span) {
	switch {
	case err != nil:
		r.result.Status = models.ExecutionStatusFailed
		r.result.Error = err.Error()
		r.result.Pending = nil

		otelhelper.SetError(span, err)
		r.logger.ErrorContext(ctx, "Flow execution failed", "error", err, "steps", len(r.result.Steps))
	case r.result.Status == models.ExecutionStatusRunning:
		r.result.Status = models.ExecutionStatusCompleted
	}

	span.SetAttributes(attribute.String(otelhelper.StatusKey, string(r.result.Status)))

	if r.result.Status == models.ExecutionStatusWaitingInput {
		r.logger.InfoContext(ctx, "Flow execution waiting for input",
			"node_id", r.result.Pending.NodeID,
			"question_id", r.result.Pending.QuestionID)

		return
	}

	completedAt := e.now()
	r.result.CompletedAt = &completedAt

	r.logger.InfoContext(ctx, "Flow execution finished", "status", r.result.Status, "steps", len(r.result.Steps))
}

func (e *Executor) restore(flow *models.Flow, record *models.ExecutionRecord) *run {
	if record.Answers == nil {
		record.Answers = map[string]any{}
	}

	if record.Context.Variables == nil {
		record.Context.Variables = map[string]any{}
	}

	if record.Context.Contact == nil {
		record.Context.Contact = &models.Contact{ID: record.Context.UserID}
	}

	visited := make(map[string]bool, len(record.Result.Steps))
	for _, step := range record.Result.Steps {
		visited[step.NodeID] = true
	}

	return &run{
		flow:    flow,
		ectx:    record.Context,
		result:  record.Result,
		answers: record.Answers,
		visited: visited,
		logger: e.logger.With(
			"execution_id", record.Result.ExecutionID,
			"flow_id", flow.ID,
			"user_id", record.Context.UserID,
			"channel", record.Context.ChannelType,
		),
	}
}

func generateExecutionID() string {
	return "exec-" + uuid.NewString()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
