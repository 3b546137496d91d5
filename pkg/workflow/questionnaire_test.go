package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func signupFlow() *models.Flow {
	return &models.Flow{
		ID: "signup",
		Nodes: []*models.Node{
			dmTrigger(),
			{ID: "q", Type: models.NodeTypeQuestionnaire, Config: &models.QuestionnaireConfig{
				Questions: []models.Question{
					{ID: "q_name", Text: "What's your name?", Type: "text", SaveTo: "full_name"},
					{ID: "q_email", Text: "Thanks {{full_name}}, your email?", Type: "email", SaveTo: "email",
						Validation: &models.AnswerValidation{Required: true, Pattern: `@`}},
				},
				OnComplete: []models.Action{
					{Action: models.ActionTag, TagValue: "lead"},
					{Action: models.ActionMessage, Text: "Saved {{email}}"},
				},
			}},
			messageNode("bye", "Bye {{full_name}}"),
		},
		Edges: []*models.Edge{edge("trigger", "q"), edge("q", "bye")},
	}
}

func TestExecute_QuestionnaireWithSuppliedAnswers(t *testing.T) {
	sender := newRecordingSender()
	executor := newTestExecutor(Dependencies{Channels: sender})

	data := map[string]any{
		"type":    "dm",
		"answers": map[string]any{"q_name": "Ann", "q_email": "ann@example.com"},
	}

	record := executor.Run(context.Background(), signupFlow(), &models.Contact{ID: "u1"}, "page", models.ChannelInstagram, data)

	require.Equal(t, models.ExecutionStatusCompleted, record.Result.Status, record.Result.Error)
	assert.Nil(t, record.Result.Pending)
	assert.Equal(t, "Ann", record.Context.Variables["full_name"])
	assert.Equal(t, "ann@example.com", record.Context.Variables["email"])
	assert.Equal(t, map[string]any{"full_name": "Ann", "email": "ann@example.com"}, record.Answers)
	assert.True(t, record.Context.Contact.HasTag("lead"))

	assert.Equal(t, []string{
		"What's your name?",
		"Thanks Ann, your email?",
		"Saved ann@example.com",
		"Bye Ann",
	}, sender.texts())

	step := record.Result.Steps[0]
	assert.Equal(t, models.StepActionQuestionnaireCompleted, step.Action)
	assert.Equal(t, record.Answers, step.Result["answers"])
}

func TestExecute_QuestionnaireWaitsAndResumes(t *testing.T) {
	sender := newRecordingSender()
	executor := newTestExecutor(Dependencies{Channels: sender, Answers: NoAnswers{}})
	flow := signupFlow()

	record := executor.Run(context.Background(), flow, &models.Contact{ID: "u1"}, "page", models.ChannelInstagram, dmData())

	require.Equal(t, models.ExecutionStatusWaitingInput, record.Result.Status)
	assert.Nil(t, record.Result.CompletedAt)
	assert.Equal(t, &models.PendingInput{NodeID: "q", QuestionID: "q_name", QuestionIndex: 0, ExpectedType: "text"}, record.Result.Pending)
	require.Len(t, record.Result.Steps, 1)
	assert.Equal(t, models.StepActionWaitingInput, record.Result.Steps[0].Action)
	assert.Equal(t, []string{"What's your name?"}, sender.texts())

	record, err := executor.Resume(context.Background(), flow, record, "Ann")
	require.NoError(t, err)

	require.Equal(t, models.ExecutionStatusWaitingInput, record.Result.Status)
	assert.Equal(t, "q_email", record.Result.Pending.QuestionID)
	assert.Equal(t, 1, record.Result.Pending.QuestionIndex)
	assert.Equal(t, "Ann", record.Context.Variables["full_name"])

	_, err = executor.Resume(context.Background(), flow, record, "not an email")
	require.ErrorIs(t, err, ErrInvalidAnswer)
	assert.Equal(t, models.ExecutionStatusWaitingInput, record.Result.Status, "rejected answers leave the record untouched")
	assert.Len(t, record.Result.Steps, 2)

	record, err = executor.Resume(context.Background(), flow, record, "ann@example.com")
	require.NoError(t, err)

	require.Equal(t, models.ExecutionStatusCompleted, record.Result.Status, record.Result.Error)
	assert.NotNil(t, record.Result.CompletedAt)
	assert.Nil(t, record.Result.Pending)
	assert.Equal(t, "ann@example.com", record.Context.Variables["email"])
	assert.True(t, record.Context.Contact.HasTag("lead"))

	steps := record.Result.Steps
	require.Len(t, steps, 4)
	assert.Equal(t, models.StepActionWaitingInput, steps[0].Action)
	assert.Equal(t, models.StepActionAnswerReceived, steps[1].Action)
	assert.Equal(t, models.StepActionAnswerReceived, steps[2].Action)
	assert.Equal(t, "ann@example.com", steps[2].Result["answer"])
	assert.Equal(t, models.StepActionMessageSent, steps[3].Action)
	assert.Equal(t, "Bye Ann", steps[3].Result["text"])

	_, err = executor.Resume(context.Background(), flow, record, "again")
	assert.ErrorIs(t, err, ErrNotWaiting)
}

func TestResume_RejectsMismatchedFlow(t *testing.T) {
	executor := newTestExecutor(Dependencies{Channels: newRecordingSender(), Answers: NoAnswers{}})

	record := executor.Run(context.Background(), signupFlow(), &models.Contact{ID: "u1"}, "page", models.ChannelInstagram, dmData())
	require.Equal(t, models.ExecutionStatusWaitingInput, record.Result.Status)

	_, err := executor.Resume(context.Background(), &models.Flow{ID: "other"}, record, "Ann")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to flow signup")

	_, err = executor.Resume(context.Background(), signupFlow(), &models.ExecutionRecord{}, "Ann")
	require.Error(t, err)
}

func TestExecute_QuestionnaireExtractsWithAI(t *testing.T) {
	service := &mockAI{}
	service.On("ExtractField", mock.Anything, "it's ANN@example.com", "email").Return("ann@example.com", nil).Once()

	executor := newTestExecutor(Dependencies{Channels: newRecordingSender(), AI: service})
	flow := &models.Flow{
		ID: "f",
		Nodes: []*models.Node{
			dmTrigger(),
			{ID: "q", Type: models.NodeTypeQuestionnaire, Config: &models.QuestionnaireConfig{
				Questions: []models.Question{
					{ID: "q1", Text: "Email?", Type: "email", SaveTo: "email", AIExtract: true, Validation: &models.AnswerValidation{Required: true}},
					{ID: "q2", Text: "Anything else?", AIExtract: true},
				},
			}},
		},
		Edges: []*models.Edge{edge("trigger", "q")},
	}

	data := map[string]any{"type": "dm", "answers": map[string]any{"q1": "it's ANN@example.com", "q2": "no"}}
	record := executor.Run(context.Background(), flow, &models.Contact{ID: "u1"}, "page", models.ChannelInstagram, data)

	require.Equal(t, models.ExecutionStatusCompleted, record.Result.Status, record.Result.Error)
	assert.Equal(t, "ann@example.com", record.Context.Variables["email"])
	assert.Equal(t, "no", record.Context.Variables["q2"], "extraction only runs for validated questions")
	service.AssertExpectations(t)
}

func TestExecute_QuestionnaireInvalidSuppliedAnswerFailsRun(t *testing.T) {
	executor := newTestExecutor(Dependencies{Channels: newRecordingSender()})

	data := map[string]any{"type": "dm", "answers": map[string]any{"q_name": "Ann", "q_email": ""}}
	result := executor.Execute(context.Background(), signupFlow(), &models.Contact{ID: "u1"}, "page", models.ChannelInstagram, data)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Nil(t, result.Pending)
	assert.Contains(t, result.Error, "answer is required")
}

func TestExecute_AnswerProviderError(t *testing.T) {
	executor := newTestExecutor(Dependencies{
		Channels: newRecordingSender(),
		Answers: AnswerProviderFunc(func(context.Context, *models.ExecutionContext, models.Question) (any, bool, error) {
			return nil, false, errors.New("inbox unavailable")
		}),
	})

	result := executor.Execute(context.Background(), signupFlow(), &models.Contact{ID: "u1"}, "page", models.ChannelInstagram, dmData())

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Error, "inbox unavailable")
}

func TestTriggerAnswers(t *testing.T) {
	ectx := &models.ExecutionContext{TriggerData: map[string]any{"answers": map[string]any{"q1": "yes"}}}

	answer, ok, err := TriggerAnswers{}.Answer(context.Background(), ectx, models.Question{ID: "q1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "yes", answer)

	_, ok, err = TriggerAnswers{}.Answer(context.Background(), ectx, models.Question{ID: "q2"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = TriggerAnswers{}.Answer(context.Background(), &models.ExecutionContext{}, models.Question{ID: "q1"})
	require.NoError(t, err)
	assert.False(t, ok)
}
