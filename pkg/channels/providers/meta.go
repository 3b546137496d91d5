// Package providers implements channel senders on top of each platform's messaging API.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dukex/inboxflow/pkg/httpcall"
	"github.com/dukex/inboxflow/pkg/models"
)

// DefaultGraphURL is the Meta Graph API base used by Instagram and Messenger.
const DefaultGraphURL = "https://graph.facebook.com/v19.0"

// MetaSender sends Instagram and Messenger messages through the Graph API Send endpoint.
// channelID is the page (or Instagram professional account) id.
type MetaSender struct {
	client      *httpcall.Client
	baseURL     string
	accessToken string
}

// NewMetaSender creates a Graph API sender. An empty baseURL uses DefaultGraphURL.
func NewMetaSender(client *httpcall.Client, baseURL, accessToken string) *MetaSender {
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}

	return &MetaSender{client: client, baseURL: baseURL, accessToken: accessToken}
}

func (s *MetaSender) Send(ctx context.Context, channelID, userID string, msg models.NormalizedMessage) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/messages?access_token=%s", s.baseURL, url.PathEscape(channelID), url.QueryEscape(s.accessToken))

	payload := map[string]any{
		"recipient":      map[string]any{"id": userID},
		"messaging_type": "RESPONSE",
		"message":        metaMessage(msg),
	}

	resp, err := s.client.PostJSON(ctx, endpoint, nil, payload)
	if err != nil {
		return "", fmt.Errorf("graph api send failed: %w", err)
	}

	body, _ := resp.Body.(map[string]any)

	messageID, _ := body["message_id"].(string)
	if messageID == "" {
		return "", errors.New("graph api response has no message_id")
	}

	return messageID, nil
}

func metaMessage(msg models.NormalizedMessage) map[string]any {
	message := map[string]any{}

	switch {
	case len(msg.Buttons) > 0:
		buttons := make([]map[string]any, 0, len(msg.Buttons))
		for _, button := range msg.Buttons {
			buttons = append(buttons, metaButton(button))
		}

		message["attachment"] = map[string]any{
			"type": "template",
			"payload": map[string]any{
				"template_type": "button",
				"text":          msg.Text,
				"buttons":       buttons,
			},
		}
	case len(msg.ListOptions) > 0:
		elements := make([]map[string]any, 0, len(msg.ListOptions))
		for _, option := range msg.ListOptions {
			elements = append(elements, map[string]any{
				"title":    option.Title,
				"subtitle": option.Description,
				"buttons":  []map[string]any{{"type": "postback", "title": option.Title, "payload": option.ID}},
			})
		}

		message["attachment"] = map[string]any{
			"type":    "template",
			"payload": map[string]any{"template_type": "generic", "elements": elements},
		}
	case msg.Media != nil:
		message["attachment"] = map[string]any{
			"type":    metaAttachmentType(msg.Media.Type),
			"payload": map[string]any{"url": msg.Media.URL, "is_reusable": true},
		}
	default:
		message["text"] = msg.Text
	}

	if len(msg.QuickReplies) > 0 {
		replies := make([]map[string]any, 0, len(msg.QuickReplies))
		for _, reply := range msg.QuickReplies {
			replies = append(replies, map[string]any{"content_type": "text", "title": reply, "payload": reply})
		}

		message["quick_replies"] = replies
	}

	return message
}

func metaButton(button models.Button) map[string]any {
	if button.URL != "" {
		return map[string]any{"type": "web_url", "title": button.Title, "url": button.URL}
	}

	payload := button.Payload
	if payload == "" {
		payload = firstNonEmpty(button.ID, button.Title)
	}

	return map[string]any{"type": "postback", "title": button.Title, "payload": payload}
}

func metaAttachmentType(mediaType models.MediaType) string {
	if mediaType == models.MediaDocument {
		return "file"
	}

	return string(mediaType)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}
