package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/fluxionhq/fluxion/pkg/cmd"
	"github.com/fluxionhq/fluxion/pkg/credentials"
	"github.com/fluxionhq/fluxion/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "fluxion-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker that executes enqueued workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
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
				Name:    "run-queue",
				Usage:   "Redis list to consume run requests from (optional)",
				Value:   "",
				Sources: cli.EnvVars("RUN_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the run queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "credentials-file",
				Usage:   "Path to the sealed credential store (optional)",
				Value:   "",
				Sources: cli.EnvVars("CREDENTIALS_FILE"),
			},
			&cli.StringFlag{
				Name:    "credentials-key",
				Usage:   "32-byte AES key for credential decryption",
				Value:   "",
				Sources: cli.EnvVars("CREDENTIALS_KEY"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("fluxion-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing fluxion worker")

			collaborators := cmd.Collaborators{}

			if path := command.String("credentials-file"); path != "" {
				crypt, err := credentials.NewAESGCM([]byte(command.String("credentials-key")))
				if err != nil {
					return err
				}

				collaborators.Credentials = credentials.NewResolver(credentials.NewFileStore(path), crypt)
			}

			registry := cmd.NewRegistry(logger, collaborators)

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

			statusPublisher := cmd.NewStatusPublisher(command.String("event-bus"), logger)

			worker := NewWorker(workerID, persist, eventBus, registry, statusPublisher, logger, WorkerOptions{
				RunQueue:  command.String("run-queue"),
				RedisAddr: command.String("redis-addr"),
			})

			return worker.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
