package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/bloomcare/careflow/pkg/audit"
	"github.com/bloomcare/careflow/pkg/capabilities"
	"github.com/bloomcare/careflow/pkg/cmd"
	"github.com/bloomcare/careflow/pkg/log"
	"github.com/bloomcare/careflow/pkg/otelhelper"
)

const defaultPort = 9080

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "careflow-api",
		Usage:                 "Create and manage client lifecycle workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for distributed instance locks (empty for in-process locks)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "audit-path",
				Usage:   "Path of the action execution audit log",
				Value:   "./careflow-audit.jsonl",
				Sources: cli.EnvVars("AUDIT_PATH"),
			},
			&cli.StringFlag{
				Name:    "templates-path",
				Usage:   "Directory with additional JSON workflow templates",
				Sources: cli.EnvVars("TEMPLATES_PATH"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("OTEL_ENABLED"),
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

			logger.InfoContext(ctx, "Initializing Careflow API")

			tracer := otelhelper.NewNoopTracer()

			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "careflow-api")
				if err != nil {
					return err
				}
			}

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			lockManager, err := cmd.NewLockManager(command.String("redis-url"))
			if err != nil {
				return err
			}

			fileRecorder, err := audit.NewFileRecorder(command.String("audit-path"))
			if err != nil {
				return err
			}

			recorder := audit.NewBusRecorder(fileRecorder, eventBus, logger)

			caps := capabilities.NewLogSet(logger).Set()
			reg := cmd.NewRegistry(logger, caps)

			api, err := NewAPI(logger, store, reg, eventBus, lockManager, recorder, tracer, command.String("templates-path"))
			if err != nil {
				return err
			}

			if err := api.Start(int(command.Int("port"))); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
