package models

// ChannelType is a messaging platform.
type ChannelType string

const (
	ChannelInstagram ChannelType = "instagram"
	ChannelMessenger ChannelType = "messenger"
	ChannelWhatsApp  ChannelType = "whatsapp"
	ChannelTelegram  ChannelType = "telegram"
)

// ChannelCapabilities describes what a channel can render.
type ChannelCapabilities struct {
	SupportsButtons        bool        `json:"supportsButtons"`
	SupportsQuickReplies   bool        `json:"supportsQuickReplies"`
	SupportsLists          bool        `json:"supportsLists"`
	SupportsInlineKeyboard bool        `json:"supportsInlineKeyboard"`
	SupportsMedia          bool        `json:"supportsMedia"`
	SupportedMedia         []MediaType `json:"supportedMedia,omitempty"`
	MaxTextLength          int         `json:"maxTextLength"`
	MaxButtons             int         `json:"maxButtons"`
}
