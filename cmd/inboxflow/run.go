package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dukex/inboxflow/pkg/channels"
	"github.com/dukex/inboxflow/pkg/cmd"
	"github.com/dukex/inboxflow/pkg/compliance"
	"github.com/dukex/inboxflow/pkg/log"
	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Execute a flow file once and print the execution record",
		ArgsUsage: "<flow.json>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "trigger",
				Usage: "JSON file with the trigger data; answers go under \"answers\"",
			},
			&cli.StringFlag{
				Name:  "contact",
				Usage: "JSON file with the contact",
			},
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Channel the run is for (instagram, messenger, whatsapp, telegram)",
				Value: string(models.ChannelInstagram),
			},
			&cli.StringFlag{
				Name:  "channel-id",
				Usage: "Page, phone number or bot id the run sends from",
				Value: "local",
			},
			&cli.BoolFlag{
				Name:  "send",
				Usage: "Deliver messages through the configured providers instead of printing them",
			},
		}, engineFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.NArg() != 1 {
				return fmt.Errorf("expected one flow file, got %d", command.NArg())
			}

			flow, err := readFlow(command.Args().First())
			if err != nil {
				return err
			}

			triggerData := map[string]any{}
			if path := command.String("trigger"); path != "" {
				if err := readJSON(path, &triggerData); err != nil {
					return err
				}
			}

			contact := &models.Contact{ID: "local-user"}
			if path := command.String("contact"); path != "" {
				if err := readJSON(path, contact); err != nil {
					return err
				}
			}

			if contact.LastInboundAt == nil {
				now := time.Now().UTC()
				contact.LastInboundAt = &now
			}

			executor, closeSenders, err := runExecutor(command)
			if err != nil {
				return err
			}

			defer func() { _ = closeSenders() }()

			record := executor.Run(ctx, flow, contact, command.String("channel-id"), models.ChannelType(command.String("channel")), triggerData)

			encoder := json.NewEncoder(command.Root().Writer)
			encoder.SetIndent("", "  ")

			if err := encoder.Encode(record.Result); err != nil {
				return fmt.Errorf("failed to write execution: %w", err)
			}

			if record.Result.Status == models.ExecutionStatusFailed {
				return fmt.Errorf("execution %s failed: %s", record.Result.ExecutionID, record.Result.Error)
			}

			return nil
		},
	}
}

func runExecutor(command *cli.Command) (*workflow.Executor, func() error, error) {
	logger := log.WithModule("run")

	if command.Bool("send") {
		return newExecutor(command, logger)
	}

	console := consoleSender(command.Root().ErrWriter)
	senders := map[models.ChannelType]channels.Sender{}

	for _, channel := range []models.ChannelType{models.ChannelInstagram, models.ChannelMessenger, models.ChannelWhatsApp, models.ChannelTelegram} {
		senders[channel] = console
	}

	executor := workflow.NewExecutor(logger, workflow.Dependencies{
		Channels:   channels.NewDispatcher(logger, senders),
		Compliance: compliance.NewWindowPolicy(compliance.WithAllowFollowers(command.Bool("allow-followers"))),
		HTTP:       cmd.NewHTTPClient(false, command.Duration("http-timeout")),
	})

	return executor, func() error { return nil }, nil
}

// consoleSender prints messages instead of delivering them.
func consoleSender(w io.Writer) channels.Sender {
	if w == nil {
		w = os.Stderr
	}

	count := 0

	return channels.SenderFunc(func(_ context.Context, channelID, userID string, msg models.NormalizedMessage) (string, error) {
		count++

		line := msg.Text
		if msg.Template != nil {
			line = "[template " + msg.Template.Name + "] " + line
		}

		for _, button := range msg.Buttons {
			line += " [" + button.Title + "]"
		}

		fmt.Fprintf(w, "%s -> %s: %s\n", channelID, userID, line)

		return fmt.Sprintf("console-%d", count), nil
	})
}

func readFlow(path string) (*models.Flow, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read flow %s: %w", path, err)
	}

	flow, err := models.ParseFlow(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return flow, nil
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the command line
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return nil
}
