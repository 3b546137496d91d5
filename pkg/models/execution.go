package models

import "time"

// ExecutionStatus is the state of a flow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning      ExecutionStatus = "running"
	ExecutionStatusCompleted    ExecutionStatus = "completed"
	ExecutionStatusFailed       ExecutionStatus = "failed"
	ExecutionStatusSkipped      ExecutionStatus = "skipped"
	ExecutionStatusWaitingInput ExecutionStatus = "waiting_input"
)

// Step actions recorded on the execution trace.
const (
	StepActionMessageSent            = "message_sent"
	StepActionSendFailed             = "send_failed"
	StepActionFallbackToTemplate     = "fallback_to_template"
	StepActionHeld                   = "held"
	StepActionConditionEvaluated     = "condition_evaluated"
	StepActionHTTPSuccess            = "http_success"
	StepActionHTTPError              = "http_error"
	StepActionWaitingInput           = "waiting_input"
	StepActionAnswerReceived         = "answer_received"
	StepActionQuestionnaireCompleted = "questionnaire_completed"
)

// ExecutionContext is the mutable state of a single run. It is never shared across runs.
type ExecutionContext struct {
	ExecutionID   string         `json:"executionId"`
	FlowID        string         `json:"flowId"`
	UserID        string         `json:"userId"`
	Contact       *Contact       `json:"contact"`
	ChannelID     string         `json:"channelId"`
	ChannelType   ChannelType    `json:"channelType"`
	TriggerData   map[string]any `json:"triggerData,omitempty"`
	Variables     map[string]any `json:"variables"`
	CurrentNodeID string         `json:"currentNodeId,omitempty"`
}

// ExecutionStep records one visited node.
type ExecutionStep struct {
	NodeID    string         `json:"nodeId"`
	NodeType  NodeType       `json:"nodeType"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// PendingInput points at the question an execution is waiting on.
type PendingInput struct {
	NodeID        string `json:"nodeId"`
	QuestionID    string `json:"questionId"`
	QuestionIndex int    `json:"questionIndex"`
	ExpectedType  string `json:"expectedType,omitempty"`
}

// ExecutionResult is the trace and outcome of a run.
type ExecutionResult struct {
	ExecutionID string          `json:"executionId"`
	FlowID      string          `json:"flowId"`
	Status      ExecutionStatus `json:"status"`
	Steps       []ExecutionStep `json:"steps"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Error       string          `json:"error,omitempty"`
	Pending     *PendingInput   `json:"pending,omitempty"`
}

// ExecutionRecord bundles a result with the state needed to resume it.
type ExecutionRecord struct {
	Result  *ExecutionResult  `json:"result"`
	Context *ExecutionContext `json:"context"`
	Answers map[string]any    `json:"answers,omitempty"`
}

// ID returns the execution id of the record.
func (r *ExecutionRecord) ID() string {
	if r.Result == nil {
		return ""
	}

	return r.Result.ExecutionID
}
