package compliance

import (
	"context"
	"time"

	"github.com/dukex/inboxflow/pkg/models"
)

// WindowPolicy enforces the platforms' 24 hour customer service windows.
//
// Instagram and Messenger hold messages outside the window, WhatsApp falls back to an
// approved template and Telegram has no window. Unknown channels are denied.
type WindowPolicy struct {
	// AllowFollowers lets Instagram and Messenger message followers outside the window.
	AllowFollowers bool

	now func() time.Time
}

// Option configures a WindowPolicy.
type Option func(*WindowPolicy)

// WithAllowFollowers sets AllowFollowers.
func WithAllowFollowers(allow bool) Option {
	return func(p *WindowPolicy) {
		p.AllowFollowers = allow
	}
}

// WithClock replaces the clock used to measure the window.
func WithClock(now func() time.Time) Option {
	return func(p *WindowPolicy) {
		p.now = now
	}
}

// NewWindowPolicy creates the default policy.
func NewWindowPolicy(opts ...Option) *WindowPolicy {
	policy := &WindowPolicy{now: time.Now}
	for _, opt := range opts {
		opt(policy)
	}

	return policy
}

func (p *WindowPolicy) CheckPolicy(_ context.Context, policy PolicyContext, intent Intent) (Decision, error) {
	if intent != IntentMessage {
		return Decision{Allowed: true}, nil
	}

	inWindow := policy.LastInboundAt != nil && p.now().Sub(*policy.LastInboundAt) <= MessagingWindow

	switch policy.Channel {
	case models.ChannelInstagram, models.ChannelMessenger:
		if inWindow || (p.AllowFollowers && policy.IsFollower) {
			return Decision{Allowed: true}, nil
		}

		return Decision{Reason: ReasonOutsideWindow, Fallback: FallbackHold}, nil
	case models.ChannelWhatsApp:
		if inWindow {
			return Decision{Allowed: true}, nil
		}

		return Decision{Reason: ReasonOutsideWindow, Fallback: FallbackTemplate}, nil
	case models.ChannelTelegram:
		return Decision{Allowed: true}, nil
	default:
		return Decision{Reason: "unsupported channel: " + string(policy.Channel)}, nil
	}
}
