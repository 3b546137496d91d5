package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukex/inboxflow/pkg/cmd"
	"github.com/dukex/inboxflow/pkg/compliance"
	"github.com/dukex/inboxflow/pkg/log"
	"github.com/dukex/inboxflow/pkg/otelhelper"
	"github.com/dukex/inboxflow/pkg/persistence"
	"github.com/dukex/inboxflow/pkg/pubsub/kafka"
	"github.com/dukex/inboxflow/pkg/services"
	"github.com/dukex/inboxflow/pkg/web"
	"github.com/dukex/inboxflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

type API struct {
	logger   *slog.Logger
	flows    *services.Flows
	runner   *services.Runner
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, flows *services.Flows, runner *services.Runner) *API {
	return &API{
		logger:   logger,
		flows:    flows,
		runner:   runner,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.flows, a.runner, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Inboxflow API")
	})

	handlers.Routes(app)

	return app
}

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the flow API",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (file://path or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel, none)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.DurationFlag{
				Name:    "flow-cache-ttl",
				Usage:   "How long flow definitions are cached (0 disables the cache)",
				Value:   time.Minute,
				Sources: cli.EnvVars("FLOW_CACHE_TTL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
		}, engineFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("api")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if command.Bool("tracing") {
				tracerProvider, err := otelhelper.Setup(ctx, "inboxflow")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					if err := tracerProvider.Shutdown(context.Background()); err != nil {
						logger.Error("Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(context.Background()); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), kafka.ParseBrokers(command.String("kafka-brokers")), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			executor, closeSenders, err := newExecutor(command, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := closeSenders(); err != nil {
					logger.Error("Failed to close channel senders", "error", err)
				}
			}()

			var flows persistence.FlowRepository = store
			if ttl := command.Duration("flow-cache-ttl"); ttl > 0 {
				flows = persistence.NewCachedFlows(store, ttl)
			}

			runner := services.NewRunner(logger, executor, flows, store, eventBus)
			app := NewAPI(logger, services.NewFlows(flows), runner).App()

			go func() {
				<-ctx.Done()

				if err := app.Shutdown(); err != nil {
					logger.Error("Failed to shutdown API", "error", err)
				}
			}()

			logger.InfoContext(ctx, "Starting inboxflow API", "port", command.Int("port"))

			err = app.Listen(":"+strconv.Itoa(command.Int("port")), fiber.ListenConfig{DisableStartupMessage: true})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("API server failed: %w", err)
			}

			return nil
		},
	}
}

// engineFlags configure the executor collaborators shared by serve and run.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL enabling per-account send rate limits",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Usage:   "Upper bound for provider and HTTP node requests",
			Value:   30 * time.Second,
			Sources: cli.EnvVars("HTTP_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:    "allow-followers",
			Usage:   "Let Instagram and Messenger followers receive messages outside the 24h window",
			Sources: cli.EnvVars("ALLOW_FOLLOWERS"),
		},
		&cli.StringFlag{
			Name:    "graph-url",
			Usage:   "Meta Graph API base URL",
			Sources: cli.EnvVars("GRAPH_API_URL"),
		},
		&cli.StringFlag{
			Name:    "telegram-url",
			Usage:   "Telegram Bot API base URL",
			Sources: cli.EnvVars("TELEGRAM_API_URL"),
		},
		&cli.StringFlag{
			Name:    "instagram-access-token",
			Usage:   "Instagram page access token",
			Sources: cli.EnvVars("INSTAGRAM_ACCESS_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "messenger-access-token",
			Usage:   "Messenger page access token",
			Sources: cli.EnvVars("MESSENGER_ACCESS_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "whatsapp-access-token",
			Usage:   "WhatsApp Cloud API access token",
			Sources: cli.EnvVars("WHATSAPP_ACCESS_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "telegram-bot-token",
			Usage:   "Telegram bot token",
			Sources: cli.EnvVars("TELEGRAM_BOT_TOKEN"),
		},
	}
}

func newExecutor(command *cli.Command, logger *slog.Logger) (*workflow.Executor, func() error, error) {
	client := cmd.NewHTTPClient(command.Bool("tracing"), command.Duration("http-timeout"))

	dispatcher, closeFn, err := cmd.NewDispatcher(logger, client, cmd.ChannelConfig{
		InstagramToken: command.String("instagram-access-token"),
		MessengerToken: command.String("messenger-access-token"),
		WhatsAppToken:  command.String("whatsapp-access-token"),
		TelegramToken:  command.String("telegram-bot-token"),
		GraphURL:       command.String("graph-url"),
		TelegramURL:    command.String("telegram-url"),
		RedisURL:       command.String("redis-url"),
	})
	if err != nil {
		return nil, nil, err
	}

	executor := workflow.NewExecutor(logger, workflow.Dependencies{
		Channels:   dispatcher,
		Compliance: compliance.NewWindowPolicy(compliance.WithAllowFollowers(command.Bool("allow-followers"))),
		HTTP:       client,
	})

	return executor, closeFn, nil
}
