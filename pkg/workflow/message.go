package workflow

import (
	"context"
	"fmt"

	"github.com/dukex/inboxflow/pkg/compliance"
	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/template"
)

func (e *Executor) executeMessage(
	ctx context.Context,
	r *run,
	node *models.Node,
	config *models.MessageConfig,
	step *models.ExecutionStep,
) (string, error) {
	text := template.Interpolate(config.Text, r.ectx.Variables)
	step.Result = map[string]any{}

	decision, err := e.deps.Compliance.CheckPolicy(ctx, compliance.PolicyContext{
		Channel:       r.ectx.ChannelType,
		UserID:        r.ectx.UserID,
		LastInboundAt: r.ectx.Contact.LastInboundAt,
		IsFollower:    r.ectx.Contact.IsFollower,
	}, compliance.IntentMessage)
	if err != nil {
		return "", fmt.Errorf("compliance check failed: %w", err)
	}

	msg := models.NormalizedMessage{
		Text:         text,
		Media:        config.Media,
		Buttons:      config.Buttons,
		QuickReplies: config.QuickReplies,
		ListOptions:  config.ListOptions,
	}

	if !decision.Allowed {
		switch decision.Fallback {
		case compliance.FallbackTemplate:
			if config.Template == nil {
				step.Action = models.StepActionHeld
				step.Result["reason"] = decision.Reason
				step.Result["holdReason"] = "template fallback requested but node has no template"

				r.logger.WarnContext(ctx, "Template fallback without template, holding message", "node_id", node.ID, "reason", decision.Reason)

				return "", nil
			}

			step.Action = models.StepActionFallbackToTemplate
			step.Result["reason"] = decision.Reason

			msg.Template = interpolateTemplate(config.Template, r.ectx.Variables)
			step.Result["template"] = msg.Template.Name

			r.logger.InfoContext(ctx, "Message denied, falling back to template", "node_id", node.ID, "reason", decision.Reason)
		case compliance.FallbackHold:
			step.Action = models.StepActionHeld
			step.Result["reason"] = decision.Reason

			r.logger.InfoContext(ctx, "Message held by policy", "node_id", node.ID, "reason", decision.Reason)

			return "", nil
		default:
			return "", fmt.Errorf("%w: %s", ErrPolicyViolation, decision.Reason)
		}
	}

	if config.AI != nil && config.AI.Enabled {
		rewritten, err := e.deps.AI.ProcessMessage(ctx, msg.Text, config.AI, r.ectx.Variables)
		if err != nil {
			return "", fmt.Errorf("ai processing failed: %w", err)
		}

		msg.Text = rewritten
		step.Result["aiUsed"] = true
	}

	sent := e.deps.Channels.SendMessage(ctx, r.ectx.ChannelType, r.ectx.ChannelID, r.ectx.UserID, msg)
	step.Result["text"] = msg.Text

	if sent.Success {
		if step.Action == "" {
			step.Action = models.StepActionMessageSent
		}

		step.Result["messageId"] = sent.MessageID
	} else {
		step.Action = models.StepActionSendFailed
		step.Result["sendError"] = sent.Error

		r.logger.WarnContext(ctx, "Message send failed, continuing", "node_id", node.ID, "error", sent.Error)
	}

	for _, button := range config.Buttons {
		if button.GoTo != "" {
			return button.GoTo, nil
		}
	}

	return r.flow.NextNodeID(node.ID), nil
}

func interpolateTemplate(tpl *models.MessageTemplate, vars map[string]any) *models.MessageTemplate {
	params := make([]string, len(tpl.Params))
	for i, param := range tpl.Params {
		params[i] = template.Interpolate(param, vars)
	}

	return &models.MessageTemplate{Name: tpl.Name, Language: tpl.Language, Params: params}
}
