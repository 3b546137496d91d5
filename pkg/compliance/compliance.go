// Package compliance decides whether an outbound message may be sent to a contact.
package compliance

import (
	"context"
	"time"

	"github.com/dukex/inboxflow/pkg/models"
)

// Intent is the kind of outbound action being checked.
type Intent string

const IntentMessage Intent = "message"

// Fallback tells the caller what to do with a denied message.
type Fallback string

const (
	FallbackNone     Fallback = ""
	FallbackTemplate Fallback = "template"
	FallbackHold     Fallback = "hold"
)

// ReasonOutsideWindow is reported when the last inbound message is too old.
const ReasonOutsideWindow = "outside 24h messaging window"

// MessagingWindow is how long after the last inbound message free text is allowed.
const MessagingWindow = 24 * time.Hour

// PolicyContext carries the facts a policy decides on.
type PolicyContext struct {
	Channel       models.ChannelType
	UserID        string
	LastInboundAt *time.Time
	IsFollower    bool
}

// Decision is the verdict of a policy check.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason,omitempty"`
	Fallback Fallback `json:"fallback,omitempty"`
}

// Checker evaluates outbound messaging policy.
type Checker interface {
	CheckPolicy(ctx context.Context, policy PolicyContext, intent Intent) (Decision, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, policy PolicyContext, intent Intent) (Decision, error)

func (f CheckerFunc) CheckPolicy(ctx context.Context, policy PolicyContext, intent Intent) (Decision, error) {
	return f(ctx, policy, intent)
}

// AllowAll permits every message.
var AllowAll = CheckerFunc(func(context.Context, PolicyContext, Intent) (Decision, error) {
	return Decision{Allowed: true}, nil
})
