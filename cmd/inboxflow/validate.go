package main

import (
	"context"
	"errors"
	"fmt"

	cli "github.com/urfave/cli/v3"
)

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check flow files against the flow schema and graph rules",
		ArgsUsage: "<flow.json>...",
		Action: func(_ context.Context, command *cli.Command) error {
			if command.NArg() == 0 {
				return errors.New("expected at least one flow file")
			}

			out := command.Root().Writer
			failed := 0

			for _, path := range command.Args().Slice() {
				if _, err := readFlow(path); err != nil {
					failed++

					fmt.Fprintf(out, "FAIL %v\n", err)

					continue
				}

				fmt.Fprintf(out, "ok   %s\n", path)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d flows are invalid", failed, command.NArg())
			}

			return nil
		},
	}
}
