package main

import (
	"context"
	"errors"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/fluxionhq/fluxion/pkg/cmd"
	"github.com/fluxionhq/fluxion/pkg/log"
	"github.com/fluxionhq/fluxion/pkg/schedule"
)

func main() {
	command := &cli.Command{
		Name:                  "fluxion-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Evaluate stored schedules and enqueue due workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("fluxion-scheduler")
			logger.InfoContext(ctx, "Initializing fluxion scheduler")

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persist := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			evaluator := schedule.NewEvaluator(logger, persist.ScheduleRepository(), eventBus)

			err := evaluator.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
