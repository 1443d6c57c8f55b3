package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tilesched/internal/api"
	"github.com/samcharles93/tilesched/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		rateLimit   float64
		burst       int64
		storeLimit  int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the planning REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Float64Flag{
				Name:        "rate-limit",
				Usage:       "schedule requests per second (0 disables)",
				Value:       50,
				Destination: &rateLimit,
			},
			&cli.Int64Flag{
				Name:        "burst",
				Usage:       "schedule request burst size",
				Value:       10,
				Destination: &burst,
			},
			&cli.Int64Flag{
				Name:        "store-limit",
				Usage:       "maximum stored schedules (0 keeps all)",
				Value:       1024,
				Destination: &storeLimit,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			applyServeConfig(cmd, cfg, &addr, &rateLimit, &storeLimit)
			log := logger.FromContext(ctx)

			reg, err := loadRegistry()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if _, err := reg.Get(profileName); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			server := api.NewServer(
				api.NewScheduleStore(int(storeLimit)),
				api.NewPlanner(reg, profileName),
				api.WithRateLimit(rateLimit, int(burst)),
				api.WithLogger(log),
			)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "profile", profileName, "rate_limit", rateLimit)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
