package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/inboxflow/pkg/channels"
	"github.com/dukex/inboxflow/pkg/compliance"
	"github.com/dukex/inboxflow/pkg/events"
	"github.com/dukex/inboxflow/pkg/log"
	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/persistence"
	"github.com/dukex/inboxflow/pkg/persistence/file"
	"github.com/dukex/inboxflow/pkg/services"
	"github.com/dukex/inboxflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu    sync.Mutex
	types []events.EventType
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.types = append(p.types, event.GetType())

	return nil
}

func (p *capturePublisher) published() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]events.EventType(nil), p.types...)
}

type fixture struct {
	runner    *services.Runner
	store     *file.Persistence
	publisher *capturePublisher
	mu        sync.Mutex
	sent      []string
}

func (f *fixture) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.sent...)
}

func newFixture(t *testing.T, flows ...*models.Flow) *fixture {
	t.Helper()

	f := &fixture{
		store:     file.NewPersistence(t.TempDir()),
		publisher: &capturePublisher{},
	}

	for _, flow := range flows {
		require.NoError(t, f.store.SaveFlow(context.Background(), flow))
	}

	sender := channels.SenderFunc(func(_ context.Context, _, _ string, msg models.NormalizedMessage) (string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.sent = append(f.sent, msg.Text)

		return "mid", nil
	})

	var counter atomic.Int64

	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	executor := workflow.NewExecutor(log.Discard(), workflow.Dependencies{
		Channels:   channels.NewDispatcher(log.Discard(), map[models.ChannelType]channels.Sender{models.ChannelInstagram: sender}),
		Compliance: compliance.AllowAll,
	},
		workflow.WithIDGenerator(func() string { return fmt.Sprintf("exec-%d", counter.Add(1)) }),
		workflow.WithClock(func() time.Time { return start.Add(time.Duration(counter.Load()) * time.Minute) }),
	)

	f.runner = services.NewRunner(log.Discard(), executor, f.store, f.store, f.publisher)

	return f
}

func greetingFlow(id, keyword string) *models.Flow {
	return &models.Flow{
		ID: id,
		Nodes: []*models.Node{
			{ID: "t", Type: models.NodeTypeTrigger, Config: &models.TriggerConfig{Kind: models.TriggerKindKeyword, Keyword: keyword}},
			{ID: "m", Type: models.NodeTypeMessage, Config: &models.MessageConfig{Text: "Hi {{name}}"}},
		},
		Edges: []*models.Edge{{From: "t", To: "m"}},
	}
}

func ageFlow(id string) *models.Flow {
	return &models.Flow{
		ID: id,
		Nodes: []*models.Node{
			{ID: "t", Type: models.NodeTypeTrigger, Config: &models.TriggerConfig{Kind: models.TriggerKindDM}},
			{ID: "q", Type: models.NodeTypeQuestionnaire, Config: &models.QuestionnaireConfig{
				Questions: []models.Question{{
					ID:         "age",
					Text:       "How old are you?",
					Validation: &models.AnswerValidation{Required: true, Pattern: "^[0-9]+$"},
				}},
			}},
			{ID: "m", Type: models.NodeTypeMessage, Config: &models.MessageConfig{Text: "Thanks, {{age}}"}},
		},
		Edges: []*models.Edge{{From: "t", To: "q"}, {From: "q", To: "m"}},
	}
}

func instagramDM(userID, text string) map[string]any {
	return map[string]any{
		"sender":    map[string]any{"id": userID},
		"timestamp": float64(1741608000000),
		"message":   map[string]any{"text": text},
	}
}

func TestRunner_Execute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, greetingFlow("greeting", "hello"))

	record, err := f.runner.Execute(ctx, services.ExecuteRequest{
		FlowID:      "greeting",
		Contact:     &models.Contact{ID: "u1", Name: "Ann"},
		ChannelID:   "page-1",
		Channel:     models.ChannelInstagram,
		TriggerData: map[string]any{"message": "hello there"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, record.Result.Status)
	assert.Equal(t, []string{"Hi Ann"}, f.texts())

	stored, err := f.runner.Execution(ctx, record.ID())
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Result.Status)

	assert.Equal(t, []events.EventType{events.ExecutionStartedEvent, events.ExecutionCompletedEvent}, f.publisher.published())
}

func TestRunner_ExecuteKeepsSkippedRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, greetingFlow("greeting", "hello"))

	record, err := f.runner.Execute(ctx, services.ExecuteRequest{
		FlowID:      "greeting",
		Contact:     &models.Contact{ID: "u1"},
		ChannelID:   "page-1",
		Channel:     models.ChannelInstagram,
		TriggerData: map[string]any{"message": "bye"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSkipped, record.Result.Status)

	records, err := f.runner.Executions(ctx, "greeting")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Contains(t, f.publisher.published(), events.ExecutionSkippedEvent)
}

func TestRunner_ExecuteErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.runner.Execute(ctx, services.ExecuteRequest{FlowID: "missing", Contact: &models.Contact{ID: "u1"}})
	assert.True(t, persistence.IsFlowNotFound(err))

	_, err = f.runner.Execute(ctx, services.ExecuteRequest{FlowID: "missing"})
	assert.True(t, services.IsValidationError(err))

	_, err = f.runner.Executions(ctx, "missing")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestRunner_Resume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ageFlow("age"))

	record, err := f.runner.Execute(ctx, services.ExecuteRequest{
		FlowID:      "age",
		Contact:     &models.Contact{ID: "u1"},
		ChannelID:   "page-1",
		Channel:     models.ChannelInstagram,
		TriggerData: map[string]any{"type": "dm"},
	})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaitingInput, record.Result.Status)
	assert.Equal(t, "age", record.Result.Pending.QuestionID)

	_, err = f.runner.Resume(ctx, record.ID(), "old")
	require.ErrorIs(t, err, workflow.ErrInvalidAnswer)
	assert.True(t, services.IsValidationError(err))

	stored, err := f.runner.Execution(ctx, record.ID())
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaitingInput, stored.Result.Status)

	resumed, err := f.runner.Resume(ctx, record.ID(), "42")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Result.Status)
	assert.Equal(t, []string{"How old are you?", "Thanks, 42"}, f.texts())

	_, err = f.runner.Resume(ctx, record.ID(), "43")
	assert.True(t, services.IsConflictError(err))

	assert.Equal(t, []events.EventType{
		events.ExecutionStartedEvent,
		events.ExecutionWaitingInputEvent,
		events.ExecutionResumedEvent,
		events.ExecutionCompletedEvent,
	}, f.publisher.published())
}

func TestRunner_ResumeIsClaimedByOneCaller(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	require.NoError(t, store.SaveFlow(ctx, ageFlow("age")))

	entered := make(chan struct{})
	proceed := make(chan struct{})

	var thanks atomic.Int64

	sender := channels.SenderFunc(func(_ context.Context, _, _ string, msg models.NormalizedMessage) (string, error) {
		if strings.HasPrefix(msg.Text, "Thanks") {
			if thanks.Add(1) == 1 {
				close(entered)
				<-proceed
			}
		}

		return "mid", nil
	})

	executor := workflow.NewExecutor(log.Discard(), workflow.Dependencies{
		Channels:   channels.NewDispatcher(log.Discard(), map[models.ChannelType]channels.Sender{models.ChannelInstagram: sender}),
		Compliance: compliance.AllowAll,
		Answers:    workflow.NoAnswers{},
	})
	runner := services.NewRunner(log.Discard(), executor, store, store, nil)

	record, err := runner.Execute(ctx, services.ExecuteRequest{
		FlowID:      "age",
		Contact:     &models.Contact{ID: "u1"},
		ChannelID:   "page-1",
		Channel:     models.ChannelInstagram,
		TriggerData: map[string]any{"type": "dm"},
	})
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaitingInput, record.Result.Status)

	type outcome struct {
		record *models.ExecutionRecord
		err    error
	}

	first := make(chan outcome, 1)

	go func() {
		resumed, err := runner.Resume(ctx, record.ID(), "30")
		first <- outcome{record: resumed, err: err}
	}()

	<-entered

	_, err = runner.Resume(ctx, record.ID(), "40")
	require.Error(t, err)
	assert.True(t, services.IsConflictError(err))

	close(proceed)

	won := <-first
	require.NoError(t, won.err)
	assert.Equal(t, models.ExecutionStatusCompleted, won.record.Result.Status)

	_, err = runner.Resume(ctx, record.ID(), "50")
	assert.True(t, services.IsConflictError(err))

	assert.Equal(t, int64(1), thanks.Load())

	stored, err := runner.Execution(ctx, record.ID())
	require.NoError(t, err)
	assert.Equal(t, "30", stored.Context.Variables["age"])
}

func TestRunner_HandleInbound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, greetingFlow("pricing", "price"), greetingFlow("support", "help"))

	records, err := f.runner.HandleInbound(ctx, services.InboundRequest{
		Channel:   models.ChannelInstagram,
		ChannelID: "page-1",
		Payload:   instagramDM("u1", "what is the PRICE?"),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pricing", records[0].Result.FlowID)
	assert.Equal(t, "u1", records[0].Context.UserID)
	require.NotNil(t, records[0].Context.Contact.LastInboundAt)

	support, err := f.runner.Executions(ctx, "support")
	require.NoError(t, err)
	assert.Empty(t, support)
}

func TestRunner_HandleInboundLeavesCallerContactUntouched(t *testing.T) {
	f := newFixture(t, greetingFlow("pricing", "price"))
	contact := &models.Contact{ID: "u1", Name: "Ann"}

	records, err := f.runner.HandleInbound(context.Background(), services.InboundRequest{
		Channel:   models.ChannelInstagram,
		ChannelID: "page-1",
		Payload:   instagramDM("u1", "price?"),
		Contact:   contact,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Context.Contact.LastInboundAt)

	assert.Nil(t, contact.LastInboundAt)
}

func TestRunner_HandleInboundAnswersWaitingExecution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ageFlow("age"))

	records, err := f.runner.HandleInbound(ctx, services.InboundRequest{
		Channel:   models.ChannelInstagram,
		ChannelID: "page-1",
		Payload:   instagramDM("u1", "hi"),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, models.ExecutionStatusWaitingInput, records[0].Result.Status)

	executionID := records[0].ID()

	records, err = f.runner.HandleInbound(ctx, services.InboundRequest{
		Channel:   models.ChannelInstagram,
		ChannelID: "page-1",
		Payload:   instagramDM("u1", "not a number"),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, executionID, records[0].ID())
	assert.Equal(t, models.ExecutionStatusWaitingInput, records[0].Result.Status)

	records, err = f.runner.HandleInbound(ctx, services.InboundRequest{
		Channel:   models.ChannelInstagram,
		ChannelID: "page-1",
		Payload:   instagramDM("u1", "30"),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, executionID, records[0].ID())
	assert.Equal(t, models.ExecutionStatusCompleted, records[0].Result.Status)
	assert.Equal(t, []string{"How old are you?", "Thanks, 30"}, f.texts())
}

func TestRunner_HandleInboundRejectsUnknownChannel(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner.HandleInbound(context.Background(), services.InboundRequest{
		Channel: models.ChannelType("sms"),
		Payload: map[string]any{},
	})
	assert.True(t, services.IsValidationError(err))
}
