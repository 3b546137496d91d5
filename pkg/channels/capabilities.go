// Package channels adapts outbound messages to each messaging platform and normalizes
// inbound webhook payloads into a common shape.
package channels

import "github.com/dukex/inboxflow/pkg/models"

// unknownChannelTextLimit is the text ceiling applied to channels missing from the table.
const unknownChannelTextLimit = 500

var capabilityTable = map[models.ChannelType]models.ChannelCapabilities{
	models.ChannelInstagram: {
		SupportsButtons:        true,
		SupportsQuickReplies:   true,
		SupportsLists:          false,
		SupportsInlineKeyboard: false,
		SupportsMedia:          true,
		SupportedMedia:         []models.MediaType{models.MediaImage, models.MediaVideo, models.MediaAudio},
		MaxTextLength:          1000,
		MaxButtons:             4,
	},
	models.ChannelMessenger: {
		SupportsButtons:        true,
		SupportsQuickReplies:   true,
		SupportsLists:          true,
		SupportsInlineKeyboard: false,
		SupportsMedia:          true,
		SupportedMedia:         []models.MediaType{models.MediaImage, models.MediaVideo, models.MediaAudio, models.MediaDocument},
		MaxTextLength:          2000,
		MaxButtons:             3,
	},
	models.ChannelWhatsApp: {
		SupportsButtons:        true,
		SupportsQuickReplies:   false,
		SupportsLists:          true,
		SupportsInlineKeyboard: false,
		SupportsMedia:          true,
		SupportedMedia:         []models.MediaType{models.MediaImage, models.MediaVideo, models.MediaAudio, models.MediaDocument},
		MaxTextLength:          4096,
		MaxButtons:             3,
	},
	models.ChannelTelegram: {
		SupportsButtons:        true,
		SupportsQuickReplies:   false,
		SupportsLists:          false,
		SupportsInlineKeyboard: true,
		SupportsMedia:          true,
		SupportedMedia:         []models.MediaType{models.MediaImage, models.MediaVideo, models.MediaAudio, models.MediaDocument},
		MaxTextLength:          4096,
		MaxButtons:             8,
	},
}

// Capabilities returns the capability record of a channel. Unknown channels get a
// conservative record with every feature disabled and a 500 character text limit.
func Capabilities(channel models.ChannelType) models.ChannelCapabilities {
	if caps, ok := capabilityTable[channel]; ok {
		return caps
	}

	return models.ChannelCapabilities{MaxTextLength: unknownChannelTextLimit}
}

// Supported reports whether the channel has an entry in the capability table.
func Supported(channel models.ChannelType) bool {
	_, ok := capabilityTable[channel]

	return ok
}
