// Package web provides HTTP request and response types for the flow API.
package web

import "github.com/dukex/inboxflow/pkg/models"

// ExecuteFlowRequest represents the request body for running a flow.
type ExecuteFlowRequest struct {
	Contact     *models.Contact    `json:"contact"     validate:"required"`
	ChannelID   string             `json:"channelId"   validate:"required"`
	Channel     models.ChannelType `json:"channel"     validate:"required,oneof=instagram messenger whatsapp telegram"`
	TriggerData map[string]any     `json:"triggerData"`
}

// AnswerRequest represents the answer to the question an execution waits on.
type AnswerRequest struct {
	Answer any `json:"answer" validate:"required"`
}

// InboundRequest represents a webhook payload forwarded to a channel endpoint.
type InboundRequest struct {
	ChannelID string          `json:"channelId" validate:"required"`
	Payload   map[string]any  `json:"payload"   validate:"required"`
	Event     string          `json:"event"     validate:"omitempty,oneof=dm comment story_mention new_follower"`
	PostID    string          `json:"postId"`
	Contact   *models.Contact `json:"contact"`
}

// ExecutionResponse is an execution record as returned by the API.
type ExecutionResponse struct {
	*models.ExecutionResult

	Variables map[string]any `json:"variables,omitempty"`
	Answers   map[string]any `json:"answers,omitempty"`
}

func newExecutionResponse(record *models.ExecutionRecord) ExecutionResponse {
	response := ExecutionResponse{ExecutionResult: record.Result, Answers: record.Answers}
	if record.Context != nil {
		response.Variables = record.Context.Variables
	}

	return response
}
