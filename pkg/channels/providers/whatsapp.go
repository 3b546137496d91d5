package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dukex/inboxflow/pkg/httpcall"
	"github.com/dukex/inboxflow/pkg/models"
)

const defaultTemplateLanguage = "en_US"

// WhatsAppSender sends messages through the WhatsApp Cloud API. channelID is the phone
// number id of the business account.
type WhatsAppSender struct {
	client      *httpcall.Client
	baseURL     string
	accessToken string
}

// NewWhatsAppSender creates a Cloud API sender. An empty baseURL uses DefaultGraphURL.
func NewWhatsAppSender(client *httpcall.Client, baseURL, accessToken string) *WhatsAppSender {
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}

	return &WhatsAppSender{client: client, baseURL: baseURL, accessToken: accessToken}
}

func (s *WhatsAppSender) Send(ctx context.Context, channelID, userID string, msg models.NormalizedMessage) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, url.PathEscape(channelID))

	payload := whatsAppMessage(msg)
	payload["messaging_product"] = "whatsapp"
	payload["recipient_type"] = "individual"
	payload["to"] = userID

	resp, err := s.client.PostJSON(ctx, endpoint, map[string]string{"Authorization": "Bearer " + s.accessToken}, payload)
	if err != nil {
		return "", fmt.Errorf("whatsapp send failed: %w", err)
	}

	body, _ := resp.Body.(map[string]any)
	messages, _ := body["messages"].([]any)

	if len(messages) == 0 {
		return "", errors.New("whatsapp response has no messages")
	}

	first, _ := messages[0].(map[string]any)
	messageID, _ := first["id"].(string)

	return messageID, nil
}

// whatsAppMessage picks the richest representation the message allows. A template
// replaces free text entirely because the customer service window is closed.
func whatsAppMessage(msg models.NormalizedMessage) map[string]any {
	switch {
	case msg.Template != nil:
		language := msg.Template.Language
		if language == "" {
			language = defaultTemplateLanguage
		}

		template := map[string]any{"name": msg.Template.Name, "language": map[string]any{"code": language}}

		if len(msg.Template.Params) > 0 {
			params := make([]map[string]any, 0, len(msg.Template.Params))
			for _, param := range msg.Template.Params {
				params = append(params, map[string]any{"type": "text", "text": param})
			}

			template["components"] = []map[string]any{{"type": "body", "parameters": params}}
		}

		return map[string]any{"type": "template", "template": template}
	case len(msg.Buttons) > 0:
		buttons := make([]map[string]any, 0, len(msg.Buttons))
		for _, button := range msg.Buttons {
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]any{"id": firstNonEmpty(button.Payload, button.ID, button.Title), "title": button.Title},
			})
		}

		return map[string]any{
			"type": "interactive",
			"interactive": map[string]any{
				"type":   "button",
				"body":   map[string]any{"text": msg.Text},
				"action": map[string]any{"buttons": buttons},
			},
		}
	case len(msg.ListOptions) > 0:
		rows := make([]map[string]any, 0, len(msg.ListOptions))
		for _, option := range msg.ListOptions {
			rows = append(rows, map[string]any{"id": option.ID, "title": option.Title, "description": option.Description})
		}

		return map[string]any{
			"type": "interactive",
			"interactive": map[string]any{
				"type": "list",
				"body": map[string]any{"text": msg.Text},
				"action": map[string]any{
					"button":   "Options",
					"sections": []map[string]any{{"title": "Options", "rows": rows}},
				},
			},
		}
	case msg.Media != nil:
		media := map[string]any{"link": msg.Media.URL}
		if msg.Text != "" && msg.Media.Type != models.MediaAudio {
			media["caption"] = msg.Text
		}

		return map[string]any{"type": string(msg.Media.Type), string(msg.Media.Type): media}
	default:
		return map[string]any{"type": "text", "text": map[string]any{"body": msg.Text}}
	}
}
