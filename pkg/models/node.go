// Package models defines the flow graph, execution and messaging models shared by the engine.
package models

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies the kind of a flow node.
type NodeType string

const (
	NodeTypeTrigger       NodeType = "trigger"
	NodeTypeMessage       NodeType = "message"
	NodeTypeQuestionnaire NodeType = "questionnaire"
	NodeTypeCondition     NodeType = "condition"
	NodeTypeHTTP          NodeType = "http"
)

// NodeConfig is the closed set of node configurations. Each node type has exactly one
// implementation and the set cannot be extended outside this package.
type NodeConfig interface {
	NodeType() NodeType
	isNodeConfig()
}

// Node is a single step of a flow.
type Node struct {
	ID     string     `json:"id"     validate:"required"`
	Type   NodeType   `json:"type"   validate:"required,oneof=trigger message questionnaire condition http"`
	Config NodeConfig `json:"config"`
}

type rawNode struct {
	ID     string          `json:"id"`
	Type   NodeType        `json:"type"`
	Config json.RawMessage `json:"config"`
}

// UnmarshalJSON decodes the config payload into the variant matching the node type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	config, err := newNodeConfig(raw.Type)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}

	if len(raw.Config) > 0 && string(raw.Config) != "null" {
		if err := json.Unmarshal(raw.Config, config); err != nil {
			return fmt.Errorf("node %s: invalid %s config: %w", raw.ID, raw.Type, err)
		}
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Config = config

	return nil
}

func newNodeConfig(nodeType NodeType) (NodeConfig, error) {
	switch nodeType {
	case NodeTypeTrigger:
		return &TriggerConfig{}, nil
	case NodeTypeMessage:
		return &MessageConfig{}, nil
	case NodeTypeQuestionnaire:
		return &QuestionnaireConfig{}, nil
	case NodeTypeCondition:
		return &ConditionConfig{}, nil
	case NodeTypeHTTP:
		return &HTTPConfig{}, nil
	default:
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}
}

// MessageConfig configures an outbound message node.
type MessageConfig struct {
	Text         string           `json:"text"`
	Buttons      []Button         `json:"buttons,omitempty"`
	QuickReplies []string         `json:"quickReplies,omitempty"`
	Media        *Media           `json:"media,omitempty"`
	ListOptions  []ListOption     `json:"listOptions,omitempty"`
	Template     *MessageTemplate `json:"template,omitempty"`
	AI           *AIConfig        `json:"ai,omitempty"`
}

func (*MessageConfig) NodeType() NodeType { return NodeTypeMessage }
func (*MessageConfig) isNodeConfig()      {}

// AIConfig enables AI rewriting of a message before it is sent.
type AIConfig struct {
	Enabled bool   `json:"enabled"`
	Prompt  string `json:"prompt,omitempty"`
	Tone    string `json:"tone,omitempty"`
	Model   string `json:"model,omitempty"`
}

// QuestionnaireConfig asks an ordered list of questions and stores the answers.
type QuestionnaireConfig struct {
	Questions  []Question `json:"questions"`
	OnComplete []Action   `json:"onComplete,omitempty"`
}

func (*QuestionnaireConfig) NodeType() NodeType { return NodeTypeQuestionnaire }
func (*QuestionnaireConfig) isNodeConfig()      {}

// Question is one prompt of a questionnaire node.
type Question struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Type       string            `json:"type,omitempty"`
	SaveTo     string            `json:"saveTo,omitempty"`
	AIExtract  bool              `json:"aiExtract,omitempty"`
	Validation *AnswerValidation `json:"validation,omitempty"`
}

// SaveKey is the variable name the answer is stored under.
func (q Question) SaveKey() string {
	if q.SaveTo != "" {
		return q.SaveTo
	}

	return q.ID
}

// AnswerValidation marks a question as validated. AI extraction only runs for validated questions.
type AnswerValidation struct {
	Required bool   `json:"required,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

// ConditionConfig branches on a set of rules combined with AND or OR.
type ConditionConfig struct {
	Operator   string          `json:"operator,omitempty"`
	Conditions []ConditionRule `json:"conditions"`
	Branches   Branches        `json:"branches"`
}

func (*ConditionConfig) NodeType() NodeType { return NodeTypeCondition }
func (*ConditionConfig) isNodeConfig()      {}

// Branches holds the successor for each condition outcome. Either may be empty.
type Branches struct {
	True  string `json:"true,omitempty"`
	False string `json:"false,omitempty"`
}

// HTTPConfig calls an external endpoint.
type HTTPConfig struct {
	URL             string            `json:"url"`
	Method          string            `json:"method,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            any               `json:"body,omitempty"`
	Timeout         int               `json:"timeout,omitempty"`
	ResponseMapping map[string]string `json:"responseMapping,omitempty"`
	OnSuccess       []Action          `json:"onSuccess,omitempty"`
	OnError         []Action          `json:"onError,omitempty"`
}

func (*HTTPConfig) NodeType() NodeType { return NodeTypeHTTP }
func (*HTTPConfig) isNodeConfig()      {}
