package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/inboxflow/pkg/models"
)

// ErrUnsupportedChannel is returned for channels without a payload shape or sender.
var ErrUnsupportedChannel = errors.New("unsupported channel")

// Sender delivers an adapted message to one provider and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, channelID, userID string, msg models.NormalizedMessage) (string, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, channelID, userID string, msg models.NormalizedMessage) (string, error)

func (f SenderFunc) Send(ctx context.Context, channelID, userID string, msg models.NormalizedMessage) (string, error) {
	return f(ctx, channelID, userID, msg)
}

// SendResult reports the outcome of a send. Failures never surface as errors.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Dispatcher routes normalized messages to per-channel senders.
type Dispatcher struct {
	senders map[models.ChannelType]Sender
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher with the given senders.
func NewDispatcher(logger *slog.Logger, senders map[models.ChannelType]Sender) *Dispatcher {
	registered := make(map[models.ChannelType]Sender, len(senders))
	for channel, sender := range senders {
		registered[channel] = sender
	}

	return &Dispatcher{
		senders: registered,
		logger:  logger.With("module", "channel_dispatcher"),
	}
}

// Register adds or replaces the sender of a channel. Call it before the dispatcher is shared.
func (d *Dispatcher) Register(channel models.ChannelType, sender Sender) {
	d.senders[channel] = sender
}

// SendMessage adapts msg to the channel capabilities and hands it to the channel sender.
func (d *Dispatcher) SendMessage(ctx context.Context, channel models.ChannelType, channelID, userID string, msg models.NormalizedMessage) (result SendResult) {
	logger := d.logger.With("channel", channel, "channel_id", channelID, "user_id", userID)

	sender, ok := d.senders[channel]
	if !ok {
		logger.WarnContext(ctx, "No sender registered for channel")

		return SendResult{Error: fmt.Sprintf("%s: %s", ErrUnsupportedChannel, channel)}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Channel sender panicked", "panic", r)
			result = SendResult{Error: fmt.Sprintf("sender panic: %v", r)}
		}
	}()

	adapted := Adapt(msg, Capabilities(channel))

	messageID, err := sender.Send(ctx, channelID, userID, adapted)
	if err != nil {
		logger.WarnContext(ctx, "Failed to send message", "error", err)

		return SendResult{Error: err.Error()}
	}

	logger.DebugContext(ctx, "Message sent", "message_id", messageID)

	return SendResult{Success: true, MessageID: messageID}
}
