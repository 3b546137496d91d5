package channels

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dukex/inboxflow/pkg/models"
)

// NormalizeInboundMessage extracts sender, text, media, type and timestamp from a raw
// webhook payload. Instagram and Messenger payloads are messaging events with millisecond
// timestamps; WhatsApp payloads are Cloud API message objects and Telegram payloads are
// updates, both with Unix second timestamps.
func NormalizeInboundMessage(channel models.ChannelType, payload map[string]any) (models.InboundMessage, error) {
	switch channel {
	case models.ChannelInstagram, models.ChannelMessenger:
		return normalizeMeta(payload), nil
	case models.ChannelWhatsApp:
		return normalizeWhatsApp(payload), nil
	case models.ChannelTelegram:
		return normalizeTelegram(payload), nil
	default:
		return models.InboundMessage{}, fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
	}
}

func normalizeMeta(payload map[string]any) models.InboundMessage {
	msg := models.InboundMessage{
		UserID:    stringAt(payload, "sender", "id"),
		Type:      models.InboundMessageType,
		Timestamp: unixMillis(payload["timestamp"]),
	}

	if postback, ok := payload["postback"].(map[string]any); ok {
		msg.Type = models.InboundPostbackType
		msg.Text = stringAt(postback, "title")
		msg.Payload = stringAt(postback, "payload")

		return msg
	}

	message, _ := payload["message"].(map[string]any)
	msg.Text = stringAt(message, "text")
	msg.Payload = stringAt(message, "quick_reply", "payload")

	if attachments, ok := message["attachments"].([]any); ok && len(attachments) > 0 {
		if attachment, ok := attachments[0].(map[string]any); ok {
			msg.Media = &models.Media{
				Type: models.MediaType(stringAt(attachment, "type")),
				URL:  stringAt(attachment, "payload", "url"),
			}
		}
	}

	return msg
}

func normalizeWhatsApp(payload map[string]any) models.InboundMessage {
	msg := models.InboundMessage{
		UserID:    stringAt(payload, "from"),
		Type:      models.InboundMessageType,
		Timestamp: unixSeconds(payload["timestamp"]),
	}

	kind := stringAt(payload, "type")

	switch kind {
	case "text":
		msg.Text = stringAt(payload, "text", "body")
	case "button":
		msg.Type = models.InboundPostbackType
		msg.Text = stringAt(payload, "button", "text")
		msg.Payload = stringAt(payload, "button", "payload")
	case "interactive":
		msg.Type = models.InboundPostbackType

		reply, _ := payload["interactive"].(map[string]any)
		for _, key := range []string{"button_reply", "list_reply"} {
			if selected, ok := reply[key].(map[string]any); ok {
				msg.Text = stringAt(selected, "title")
				msg.Payload = stringAt(selected, "id")
			}
		}
	case "image", "video", "audio", "document":
		msg.Text = stringAt(payload, kind, "caption")
		msg.Media = &models.Media{
			Type: models.MediaType(kind),
			URL:  firstNonEmpty(stringAt(payload, kind, "link"), stringAt(payload, kind, "id")),
		}
	}

	return msg
}

func normalizeTelegram(payload map[string]any) models.InboundMessage {
	if callback, ok := payload["callback_query"].(map[string]any); ok {
		message, _ := callback["message"].(map[string]any)

		return models.InboundMessage{
			UserID:    stringAt(callback, "from", "id"),
			Text:      stringAt(callback, "data"),
			Payload:   stringAt(callback, "data"),
			Type:      models.InboundPostbackType,
			Timestamp: unixSeconds(message["date"]),
		}
	}

	message, ok := payload["message"].(map[string]any)
	if !ok {
		message = payload
	}

	msg := models.InboundMessage{
		UserID:    stringAt(message, "from", "id"),
		Text:      firstNonEmpty(stringAt(message, "text"), stringAt(message, "caption")),
		Type:      models.InboundMessageType,
		Timestamp: unixSeconds(message["date"]),
	}

	if photos, ok := message["photo"].([]any); ok && len(photos) > 0 {
		if largest, ok := photos[len(photos)-1].(map[string]any); ok {
			msg.Media = &models.Media{Type: models.MediaImage, URL: stringAt(largest, "file_id")}
		}
	}

	return msg
}

// stringAt walks nested maps and renders the leaf as a string. Numeric ids are formatted
// without exponent so large Telegram ids survive JSON decoding into float64.
func stringAt(data map[string]any, path ...string) string {
	var current any = data

	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}

		current = m[key]
	}

	switch v := current.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)

		return n, err == nil
	default:
		return 0, false
	}
}

func unixSeconds(value any) time.Time {
	if n, ok := toInt64(value); ok {
		return time.Unix(n, 0).UTC()
	}

	return time.Now().UTC()
}

func unixMillis(value any) time.Time {
	if n, ok := toInt64(value); ok {
		return time.UnixMilli(n).UTC()
	}

	return time.Now().UTC()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}
