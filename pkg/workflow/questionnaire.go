package workflow

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/template"
)

// TriggerDataAnswers is the trigger data key holding answers supplied up front, keyed by
// question id.
const TriggerDataAnswers = "answers"

// AnswerProvider supplies the answer to a question while a run is in progress. A false
// second result leaves the run waiting for input.
type AnswerProvider interface {
	Answer(ctx context.Context, ectx *models.ExecutionContext, question models.Question) (any, bool, error)
}

// AnswerProviderFunc adapts a function to the AnswerProvider interface.
type AnswerProviderFunc func(ctx context.Context, ectx *models.ExecutionContext, question models.Question) (any, bool, error)

func (f AnswerProviderFunc) Answer(ctx context.Context, ectx *models.ExecutionContext, question models.Question) (any, bool, error) {
	return f(ctx, ectx, question)
}

// TriggerAnswers reads answers from the "answers" object of the trigger data.
type TriggerAnswers struct{}

func (TriggerAnswers) Answer(_ context.Context, ectx *models.ExecutionContext, question models.Question) (any, bool, error) {
	answers, ok := ectx.TriggerData[TriggerDataAnswers].(map[string]any)
	if !ok {
		return nil, false, nil
	}

	answer, ok := answers[question.ID]

	return answer, ok, nil
}

// NoAnswers never has an answer, so every questionnaire suspends the run.
type NoAnswers struct{}

func (NoAnswers) Answer(context.Context, *models.ExecutionContext, models.Question) (any, bool, error) {
	return nil, false, nil
}

// askQuestions sends the questions of config starting at index from. It stops with status
// waiting_input on the first question without an answer and otherwise runs the
// onComplete actions and returns the next node.
func (e *Executor) askQuestions(
	ctx context.Context,
	r *run,
	node *models.Node,
	config *models.QuestionnaireConfig,
	step *models.ExecutionStep,
	from int,
) (string, error) {
	if step.Result == nil {
		step.Result = map[string]any{}
	}

	for index := from; index < len(config.Questions); index++ {
		question := config.Questions[index]

		prompt := template.Interpolate(question.Text, r.ectx.Variables)

		sent := e.deps.Channels.SendMessage(ctx, r.ectx.ChannelType, r.ectx.ChannelID, r.ectx.UserID, models.NormalizedMessage{Text: prompt})
		if !sent.Success {
			r.logger.WarnContext(ctx, "Question send failed, continuing", "node_id", node.ID, "question_id", question.ID, "error", sent.Error)
		}

		r.result.Status = models.ExecutionStatusWaitingInput
		r.result.Pending = &models.PendingInput{
			NodeID:        node.ID,
			QuestionID:    question.ID,
			QuestionIndex: index,
			ExpectedType:  question.Type,
		}

		step.Result["questionId"] = question.ID
		step.Result["prompt"] = prompt

		raw, ok, err := e.deps.Answers.Answer(ctx, r.ectx, question)
		if err != nil {
			return "", fmt.Errorf("failed to get answer to %s: %w", question.ID, err)
		}

		if !ok {
			if step.Action != models.StepActionAnswerReceived {
				step.Action = models.StepActionWaitingInput
			}

			return "", nil
		}

		value, err := e.processAnswer(ctx, question, raw)
		if err != nil {
			return "", err
		}

		r.storeAnswer(question, value)
		r.result.Status = models.ExecutionStatusRunning
		r.result.Pending = nil
	}

	delete(step.Result, "questionId")
	delete(step.Result, "prompt")

	if step.Action != models.StepActionAnswerReceived {
		step.Action = models.StepActionQuestionnaireCompleted
	}

	step.Result["answers"] = maps.Clone(r.answers)

	if err := e.runActions(ctx, r, config.OnComplete, r.answers); err != nil {
		return "", err
	}

	return r.flow.NextNodeID(node.ID), nil
}

// processAnswer runs AI extraction for validated questions that ask for it and checks
// the validation rules.
func (e *Executor) processAnswer(ctx context.Context, question models.Question, raw any) (any, error) {
	value := raw

	if question.Validation == nil {
		return value, nil
	}

	if question.AIExtract {
		extracted, err := e.deps.AI.ExtractField(ctx, raw, question.Type)
		if err != nil {
			return nil, fmt.Errorf("%w to %s: %w", ErrInvalidAnswer, question.ID, err)
		}

		value = extracted
	}

	text := strings.TrimSpace(template.Stringify(value))

	if question.Validation.Required && text == "" {
		return nil, fmt.Errorf("%w to %s: answer is required", ErrInvalidAnswer, question.ID)
	}

	if question.Validation.Pattern != "" && text != "" {
		pattern, err := regexp.Compile(question.Validation.Pattern)
		if err != nil {
			return nil, fmt.Errorf("question %s has an invalid pattern: %w", question.ID, err)
		}

		if !pattern.MatchString(text) {
			return nil, fmt.Errorf("%w to %s: %q does not match %s", ErrInvalidAnswer, question.ID, text, question.Validation.Pattern)
		}
	}

	return value, nil
}
