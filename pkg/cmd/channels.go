package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/inboxflow/pkg/channels"
	"github.com/dukex/inboxflow/pkg/channels/providers"
	"github.com/dukex/inboxflow/pkg/channels/ratelimit"
	"github.com/dukex/inboxflow/pkg/httpcall"
	"github.com/dukex/inboxflow/pkg/models"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ChannelConfig holds provider credentials and endpoints. A channel without a token gets
// no sender.
type ChannelConfig struct {
	InstagramToken string
	MessengerToken string
	WhatsAppToken  string
	TelegramToken  string

	GraphURL    string
	TelegramURL string

	// RedisURL enables per-account send rate limiting when set.
	RedisURL string
}

// NewHTTPClient returns the client used for provider calls and HTTP nodes. timeout caps
// every request; zero leaves the per-request timeouts alone. With tracing on, outgoing
// requests carry spans.
func NewHTTPClient(tracing bool, timeout time.Duration) *httpcall.Client {
	transport := http.DefaultTransport
	if tracing {
		transport = otelhttp.NewTransport(transport)
	}

	return httpcall.NewClient(&http.Client{Transport: transport, Timeout: timeout})
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return redis.NewClient(options), nil
}

// NewDispatcher builds the senders of every configured channel. The returned close
// function releases the Redis client, if any.
func NewDispatcher(logger *slog.Logger, client *httpcall.Client, config ChannelConfig) (*channels.Dispatcher, func() error, error) {
	senders := map[models.ChannelType]channels.Sender{}

	if config.InstagramToken != "" {
		senders[models.ChannelInstagram] = providers.NewMetaSender(client, config.GraphURL, config.InstagramToken)
	}

	if config.MessengerToken != "" {
		senders[models.ChannelMessenger] = providers.NewMetaSender(client, config.GraphURL, config.MessengerToken)
	}

	if config.WhatsAppToken != "" {
		senders[models.ChannelWhatsApp] = providers.NewWhatsAppSender(client, config.GraphURL, config.WhatsAppToken)
	}

	if config.TelegramToken != "" {
		senders[models.ChannelTelegram] = providers.NewTelegramSender(client, config.TelegramURL, config.TelegramToken)
	}

	closeFn := func() error { return nil }

	if config.RedisURL != "" {
		redisClient, err := NewRedisClient(config.RedisURL)
		if err != nil {
			return nil, nil, err
		}

		limiter := ratelimit.NewLimiter(redisClient, nil)
		for channel, sender := range senders {
			senders[channel] = limiter.Sender(channel, sender)
		}

		closeFn = redisClient.Close
	}

	for channel := range senders {
		logger.Info("Channel sender configured", "channel", channel, "rate_limited", config.RedisURL != "")
	}

	return channels.NewDispatcher(logger, senders), closeFn, nil
}
