// Package ratelimit caps outbound sends per channel account using Redis counters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/inboxflow/pkg/channels"
	"github.com/dukex/inboxflow/pkg/models"
	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a channel account exhausted its window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limit is the number of sends allowed per window.
type Limit struct {
	Max    int64
	Window time.Duration
}

// DefaultLimits are the platform send limits per channel account.
var DefaultLimits = map[models.ChannelType]Limit{
	models.ChannelInstagram: {Max: 200, Window: time.Hour},
	models.ChannelMessenger: {Max: 200, Window: time.Hour},
	models.ChannelWhatsApp:  {Max: 80, Window: time.Second},
	models.ChannelTelegram:  {Max: 30, Window: time.Second},
}

// Limiter counts sends in fixed windows. INCR is atomic so concurrent executions share
// one counter safely.
type Limiter struct {
	client redis.UniversalClient
	limits map[models.ChannelType]Limit
	prefix string
}

// NewLimiter creates a limiter. A nil limits map uses DefaultLimits.
func NewLimiter(client redis.UniversalClient, limits map[models.ChannelType]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits
	}

	return &Limiter{client: client, limits: limits, prefix: "inboxflow:ratelimit"}
}

// Allow records one send for the channel account and reports whether it fits in the window.
// Channels without a configured limit are always allowed.
func (l *Limiter) Allow(ctx context.Context, channel models.ChannelType, channelID string) (bool, error) {
	limit, ok := l.limits[channel]
	if !ok || limit.Max <= 0 {
		return true, nil
	}

	window := time.Now().UnixNano() / int64(limit.Window)
	key := fmt.Sprintf("%s:%s:%s:%d", l.prefix, channel, channelID, window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, limit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	return incr.Val() <= limit.Max, nil
}

// Sender wraps a channel sender with the limiter.
func (l *Limiter) Sender(channel models.ChannelType, next channels.Sender) channels.Sender {
	return channels.SenderFunc(func(ctx context.Context, channelID, userID string, msg models.NormalizedMessage) (string, error) {
		allowed, err := l.Allow(ctx, channel, channelID)
		if err != nil {
			return "", err
		}

		if !allowed {
			return "", fmt.Errorf("%w for %s account %s", ErrRateLimited, channel, channelID)
		}

		return next.Send(ctx, channelID, userID, msg)
	})
}
