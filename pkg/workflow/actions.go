package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/template"
)

// runActions executes actions in order. Only a cancelled delay stops the list.
func (e *Executor) runActions(ctx context.Context, r *run, actions []models.Action, data map[string]any) error {
	for _, action := range actions {
		if err := e.runAction(ctx, r, action, data); err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) runAction(ctx context.Context, r *run, action models.Action, data map[string]any) error {
	logger := r.logger.With("action", action.Action)

	switch action.Action {
	case models.ActionMessage:
		text := template.Interpolate(action.Text, template.Merge(r.ectx.Variables, data))

		sent := e.deps.Channels.SendMessage(ctx, r.ectx.ChannelType, r.ectx.ChannelID, r.ectx.UserID, models.NormalizedMessage{Text: text})
		if !sent.Success {
			logger.WarnContext(ctx, "Action message send failed", "error", sent.Error)
		}
	case models.ActionTag:
		r.ectx.Contact.AddTag(action.TagValue)
	case models.ActionField:
		if action.FieldKey == "" {
			logger.WarnContext(ctx, "Field action without fieldKey, skipping")

			return nil
		}

		r.ectx.Variables[action.FieldKey] = action.FieldValue
	case models.ActionHTTP, models.ActionGoto:
		logger.DebugContext(ctx, "Action is not implemented, skipping")
	case models.ActionDelay:
		if action.DelayMs <= 0 {
			return nil
		}

		if err := e.sleep(ctx, time.Duration(action.DelayMs)*time.Millisecond); err != nil {
			return fmt.Errorf("delay interrupted: %w", err)
		}
	default:
		logger.WarnContext(ctx, "Unknown action, skipping")
	}

	return nil
}
