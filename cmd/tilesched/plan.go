package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tilesched/internal/gemm"
	"github.com/samcharles93/tilesched/internal/graph"
	"github.com/samcharles93/tilesched/internal/logger"
	"github.com/samcharles93/tilesched/internal/oracle"
)

func planCmd() *cli.Command {
	var (
		output string
		tiles  string
		format string
	)

	return &cli.Command{
		Name:      "plan",
		Usage:     "Plan tiling and placement for a GEMM problem file",
		ArgsUsage: "<problem.json|problem.yaml|->",
		Flags: []cli.Flag{
			outputFlag(&output),
			&cli.StringFlag{
				Name:        "tiles",
				Usage:       "skip tile resolution and use m1_k1_n1_m0_k0_n0",
				Destination: &tiles,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "problem format when reading stdin (json, yaml)",
				Value:       "json",
				Destination: &format,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			applyOutputConfig(cmd, cfg, &output)
			log := logger.FromContext(ctx)

			if cmd.Args().Len() != 1 {
				return cli.Exit("error: expected exactly one problem file (or - for stdin)", 2)
			}
			doc, err := readProblem(cmd.Args().First(), graph.Format(format), os.Stdin)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			g, err := doc.Graph()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			reg, err := loadRegistry()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			prof, err := reg.Get(profileName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			var opts gemm.Options
			if tiles != "" {
				pair, err := gemm.ParseTiling(tiles)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: --tiles: %v", err), 1)
				}
				opts.Tiles = &pair
			}

			log.Debug("planning", "problem", doc.Name, "profile", prof.Name, "m", g.Problem.M, "k", g.Problem.K, "n", g.Problem.N)
			plan, err := gemm.NewScheduler(prof, oracle.NewHeuristic(prof)).Schedule(ctx, g, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: plan %s: %v", problemLabel(doc, cmd.Args().First()), err), 1)
			}

			return writePlan(cmd.Root().Writer, output, planReport{
				Name:    doc.Name,
				Profile: prof.Name,
				Plan:    plan,
			})
		},
	}
}

func readProblem(path string, format graph.Format, stdin io.Reader) (*graph.Document, error) {
	if path == "-" {
		return graph.Decode(stdin, format)
	}
	return graph.DecodeFile(path)
}

func problemLabel(doc *graph.Document, path string) string {
	if strings.TrimSpace(doc.Name) != "" {
		return doc.Name
	}
	return path
}
