package models

import "time"

// MediaType is the kind of an attached media item.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
)

// Media is a single attachment.
type Media struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

// Button is a clickable reply option. GoTo redirects the flow when set.
type Button struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Type    string `json:"type,omitempty"`
	URL     string `json:"url,omitempty"`
	Payload string `json:"payload,omitempty"`
	GoTo    string `json:"goTo,omitempty"`
}

// ListOption is an entry of a list menu.
type ListOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// MessageTemplate references a pre-approved provider template.
type MessageTemplate struct {
	Name     string   `json:"name"`
	Language string   `json:"language,omitempty"`
	Params   []string `json:"params,omitempty"`
}

// NormalizedMessage is the channel-agnostic outbound message.
type NormalizedMessage struct {
	Text         string           `json:"text,omitempty"`
	Media        *Media           `json:"media,omitempty"`
	Buttons      []Button         `json:"buttons,omitempty"`
	QuickReplies []string         `json:"quickReplies,omitempty"`
	ListOptions  []ListOption     `json:"listOptions,omitempty"`
	Template     *MessageTemplate `json:"template,omitempty"`
}

// InboundType distinguishes plain messages from button or callback clicks.
type InboundType string

const (
	InboundMessageType  InboundType = "message"
	InboundPostbackType InboundType = "postback"
)

// InboundMessage is the common shape of an inbound webhook payload.
type InboundMessage struct {
	UserID    string      `json:"userId"`
	Text      string      `json:"text,omitempty"`
	Payload   string      `json:"payload,omitempty"`
	Media     *Media      `json:"media,omitempty"`
	Type      InboundType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}
