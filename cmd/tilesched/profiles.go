package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func profilesCmd() *cli.Command {
	var output string

	return &cli.Command{
		Name:  "profiles",
		Usage: "List hardware profiles",
		Flags: []cli.Flag{outputFlag(&output)},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, cfg, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			applyOutputConfig(cmd, cfg, &output)

			reg, err := loadRegistry()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return writeProfiles(cmd.Root().Writer, output, reg.List(), profileName)
		},
	}
}
