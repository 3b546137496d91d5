package models

// TriggerKind identifies which inbound events a trigger node reacts to.
type TriggerKind string

const (
	TriggerKindKeyword      TriggerKind = "keyword"
	TriggerKindCommentDM    TriggerKind = "comment_dm"
	TriggerKindDM           TriggerKind = "dm"
	TriggerKindStoryMention TriggerKind = "story_mention"
	TriggerKindNewFollower  TriggerKind = "new_follower"
)

// TriggerConfig is the entry point configuration of a flow.
type TriggerConfig struct {
	Kind    TriggerKind `json:"kind"`
	Channel ChannelType `json:"channel,omitempty"`
	Keyword string      `json:"keyword,omitempty"`
	PostIDs []string    `json:"postIds,omitempty"`
}

func (*TriggerConfig) NodeType() NodeType { return NodeTypeTrigger }
func (*TriggerConfig) isNodeConfig()      {}
