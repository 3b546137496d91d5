package workflow

import (
	"slices"
	"strings"

	"github.com/dukex/inboxflow/pkg/models"
)

// Trigger data keys read by MatchTrigger.
const (
	TriggerDataType    = "type"
	TriggerDataMessage = "message"
	TriggerDataPostID  = "postId"
)

// MatchTrigger reports whether an inbound event, described by triggerData, starts a flow
// with the given trigger configuration. Unknown trigger kinds never match.
func MatchTrigger(config *models.TriggerConfig, triggerData map[string]any, channel models.ChannelType) bool {
	if config == nil {
		return false
	}

	if config.Channel != "" && config.Channel != channel {
		return false
	}

	switch config.Kind {
	case models.TriggerKindKeyword, models.TriggerKindCommentDM:
		return matchKeyword(config, triggerData)
	case models.TriggerKindDM:
		return triggerType(triggerData) == "dm"
	case models.TriggerKindStoryMention:
		return triggerType(triggerData) == "story_mention"
	case models.TriggerKindNewFollower:
		return triggerType(triggerData) == "new_follower"
	default:
		return false
	}
}

func matchKeyword(config *models.TriggerConfig, triggerData map[string]any) bool {
	message, ok := triggerData[TriggerDataMessage].(string)
	if !ok || message == "" {
		return false
	}

	if !strings.Contains(strings.ToLower(message), strings.ToLower(config.Keyword)) {
		return false
	}

	if len(config.PostIDs) == 0 {
		return true
	}

	postID, _ := triggerData[TriggerDataPostID].(string)

	return postID != "" && slices.Contains(config.PostIDs, postID)
}

func triggerType(triggerData map[string]any) string {
	kind, _ := triggerData[TriggerDataType].(string)

	return kind
}
