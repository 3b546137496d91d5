package models

// ActionKind identifies a side effect run from onComplete, onSuccess and onError lists.
type ActionKind string

const (
	ActionMessage ActionKind = "message"
	ActionTag     ActionKind = "tag"
	ActionField   ActionKind = "field"
	ActionHTTP    ActionKind = "http"
	ActionDelay   ActionKind = "delay"
	ActionGoto    ActionKind = "goto"
)

// Action is a fire-and-forget side effect attached to a node.
type Action struct {
	Action     ActionKind `json:"action"`
	Text       string     `json:"text,omitempty"`
	TagValue   string     `json:"tagValue,omitempty"`
	FieldKey   string     `json:"fieldKey,omitempty"`
	FieldValue any        `json:"fieldValue,omitempty"`
	DelayMs    int        `json:"delayMs,omitempty"`
	URL        string     `json:"url,omitempty"`
	Target     string     `json:"target,omitempty"`
}
