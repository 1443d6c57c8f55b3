package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

func tableCmd() *cli.Command {
	var output string

	return &cli.Command{
		Name:    "table",
		Aliases: []string{"knowledge"},
		Usage:   "List the curated tilings used on low-core-count parts",
		Flags:   []cli.Flag{outputFlag(&output)},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, cfg, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			applyOutputConfig(cmd, cfg, &output)
			return writeKnowledge(cmd.Root().Writer, output)
		},
	}
}
