package channels

import (
	"slices"

	"github.com/dukex/inboxflow/pkg/models"
)

const ellipsis = "..."

// Adapt fits a message to a channel: long text is truncated with an ellipsis, button lists
// are dropped or cut to the channel maximum, and unsupported features, media types
// included, are removed.
func Adapt(msg models.NormalizedMessage, caps models.ChannelCapabilities) models.NormalizedMessage {
	adapted := models.NormalizedMessage{
		Text:     truncate(msg.Text, caps.MaxTextLength),
		Template: msg.Template,
	}

	if caps.SupportsButtons && caps.MaxButtons > 0 && len(msg.Buttons) > 0 {
		adapted.Buttons = slices.Clone(msg.Buttons[:min(len(msg.Buttons), caps.MaxButtons)])
	}

	if caps.SupportsQuickReplies && len(msg.QuickReplies) > 0 {
		adapted.QuickReplies = slices.Clone(msg.QuickReplies)
	}

	if caps.SupportsLists && len(msg.ListOptions) > 0 {
		adapted.ListOptions = slices.Clone(msg.ListOptions)
	}

	if caps.SupportsMedia && msg.Media != nil && slices.Contains(caps.SupportedMedia, msg.Media.Type) {
		media := *msg.Media
		adapted.Media = &media
	}

	return adapted
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}

	cut := max(limit-len(ellipsis), 0)

	return string(runes[:cut]) + ellipsis
}
