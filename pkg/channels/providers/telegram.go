package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dukex/inboxflow/pkg/httpcall"
	"github.com/dukex/inboxflow/pkg/models"
)

// DefaultTelegramURL is the Bot API base.
const DefaultTelegramURL = "https://api.telegram.org"

// TelegramSender sends messages through the Bot API. userID is the chat id.
type TelegramSender struct {
	client  *httpcall.Client
	baseURL string
	token   string
}

// NewTelegramSender creates a Bot API sender. An empty baseURL uses DefaultTelegramURL.
func NewTelegramSender(client *httpcall.Client, baseURL, token string) *TelegramSender {
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}

	return &TelegramSender{client: client, baseURL: baseURL, token: token}
}

func (s *TelegramSender) Send(ctx context.Context, _ string, userID string, msg models.NormalizedMessage) (string, error) {
	method := "sendMessage"
	payload := map[string]any{"chat_id": userID}

	if msg.Media != nil {
		method, payload = telegramMedia(msg.Media, payload)
		if msg.Text != "" {
			payload["caption"] = msg.Text
		}
	} else {
		payload["text"] = msg.Text
	}

	if len(msg.Buttons) > 0 {
		keyboard := make([][]map[string]any, 0, len(msg.Buttons))
		for _, button := range msg.Buttons {
			key := map[string]any{"text": button.Title}
			if button.URL != "" {
				key["url"] = button.URL
			} else {
				key["callback_data"] = firstNonEmpty(button.Payload, button.ID, button.Title)
			}

			keyboard = append(keyboard, []map[string]any{key})
		}

		payload["reply_markup"] = map[string]any{"inline_keyboard": keyboard}
	}

	resp, err := s.client.PostJSON(ctx, fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.token, method), nil, payload)
	if err != nil {
		return "", fmt.Errorf("telegram %s failed: %w", method, err)
	}

	body, _ := resp.Body.(map[string]any)
	if ok, _ := body["ok"].(bool); !ok {
		description, _ := body["description"].(string)

		return "", fmt.Errorf("telegram %s rejected: %s", method, description)
	}

	result, _ := body["result"].(map[string]any)

	messageID, ok := result["message_id"].(float64)
	if !ok {
		return "", errors.New("telegram response has no message_id")
	}

	return strconv.FormatInt(int64(messageID), 10), nil
}

func telegramMedia(media *models.Media, payload map[string]any) (string, map[string]any) {
	switch media.Type {
	case models.MediaVideo:
		payload["video"] = media.URL

		return "sendVideo", payload
	case models.MediaAudio:
		payload["audio"] = media.URL

		return "sendAudio", payload
	case models.MediaDocument:
		payload["document"] = media.URL

		return "sendDocument", payload
	default:
		payload["photo"] = media.URL

		return "sendPhoto", payload
	}
}
