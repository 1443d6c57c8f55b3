package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tilesched/internal/gemm"
	"github.com/samcharles93/tilesched/internal/version"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			info.Knowledge = gemm.KnowledgeVersion
			w := cmd.Root().Writer
			fmt.Fprintf(w, "version:    %s\n", info.Version)
			if info.Commit != "" {
				fmt.Fprintf(w, "commit:     %s\n", info.Commit)
			}
			if info.BuildTime != "" {
				fmt.Fprintf(w, "build time: %s\n", info.BuildTime)
			}
			fmt.Fprintf(w, "go:         %s\n", info.GoVersion)
			fmt.Fprintf(w, "knowledge:  %s\n", info.Knowledge)
			return nil
		},
	}
}
