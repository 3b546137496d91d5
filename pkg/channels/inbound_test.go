package channels

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	return payload
}

func TestNormalizeInboundMessage(t *testing.T) {
	tests := []struct {
		name     string
		channel  models.ChannelType
		payload  string
		expected models.InboundMessage
	}{
		{
			name:    "instagram text",
			channel: models.ChannelInstagram,
			payload: `{"sender": {"id": "1789"}, "timestamp": 1700000000123, "message": {"mid": "m1", "text": "I need HELP"}}`,
			expected: models.InboundMessage{
				UserID:    "1789",
				Text:      "I need HELP",
				Type:      models.InboundMessageType,
				Timestamp: time.UnixMilli(1700000000123).UTC(),
			},
		},
		{
			name:    "messenger postback",
			channel: models.ChannelMessenger,
			payload: `{"sender": {"id": "42"}, "timestamp": 1700000000000, "postback": {"title": "Yes", "payload": "YES"}}`,
			expected: models.InboundMessage{
				UserID:    "42",
				Text:      "Yes",
				Payload:   "YES",
				Type:      models.InboundPostbackType,
				Timestamp: time.UnixMilli(1700000000000).UTC(),
			},
		},
		{
			name:    "messenger attachment",
			channel: models.ChannelMessenger,
			payload: `{"sender": {"id": "42"}, "timestamp": 1700000000000, "message": {"attachments": [{"type": "image", "payload": {"url": "https://cdn/x.png"}}]}}`,
			expected: models.InboundMessage{
				UserID:    "42",
				Media:     &models.Media{Type: models.MediaImage, URL: "https://cdn/x.png"},
				Type:      models.InboundMessageType,
				Timestamp: time.UnixMilli(1700000000000).UTC(),
			},
		},
		{
			name:    "whatsapp text with string seconds",
			channel: models.ChannelWhatsApp,
			payload: `{"from": "5511999999999", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "hi"}}`,
			expected: models.InboundMessage{
				UserID:    "5511999999999",
				Text:      "hi",
				Type:      models.InboundMessageType,
				Timestamp: time.Unix(1700000000, 0).UTC(),
			},
		},
		{
			name:    "whatsapp button reply",
			channel: models.ChannelWhatsApp,
			payload: `{"from": "55", "timestamp": "1700000000", "type": "interactive", "interactive": {"type": "button_reply", "button_reply": {"id": "opt-1", "title": "Option 1"}}}`,
			expected: models.InboundMessage{
				UserID:    "55",
				Text:      "Option 1",
				Payload:   "opt-1",
				Type:      models.InboundPostbackType,
				Timestamp: time.Unix(1700000000, 0).UTC(),
			},
		},
		{
			name:    "telegram message",
			channel: models.ChannelTelegram,
			payload: `{"update_id": 1, "message": {"message_id": 5, "from": {"id": 123456789012}, "chat": {"id": 123456789012}, "date": 1700000000, "text": "/start"}}`,
			expected: models.InboundMessage{
				UserID:    "123456789012",
				Text:      "/start",
				Type:      models.InboundMessageType,
				Timestamp: time.Unix(1700000000, 0).UTC(),
			},
		},
		{
			name:    "telegram callback",
			channel: models.ChannelTelegram,
			payload: `{"callback_query": {"id": "cb", "from": {"id": 7}, "data": "menu:1", "message": {"date": 1700000001}}}`,
			expected: models.InboundMessage{
				UserID:    "7",
				Text:      "menu:1",
				Payload:   "menu:1",
				Type:      models.InboundPostbackType,
				Timestamp: time.Unix(1700000001, 0).UTC(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NormalizeInboundMessage(tt.channel, decode(t, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, msg)
		})
	}
}

func TestNormalizeInboundMessage_UnsupportedChannel(t *testing.T) {
	_, err := NormalizeInboundMessage("sms", map[string]any{})

	require.ErrorIs(t, err, ErrUnsupportedChannel)
}
