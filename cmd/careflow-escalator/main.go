// Package main provides the Careflow escalation sweeper daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/bloomcare/careflow/pkg/audit"
	"github.com/bloomcare/careflow/pkg/capabilities"
	"github.com/bloomcare/careflow/pkg/cmd"
	"github.com/bloomcare/careflow/pkg/log"
	"github.com/bloomcare/careflow/pkg/notify"
	"github.com/bloomcare/careflow/pkg/otelhelper"
	"github.com/bloomcare/careflow/pkg/registry"
	"github.com/bloomcare/careflow/pkg/workflow"

	"github.com/go-playground/validator/v10"
)

func main() {
	logger := log.WithModule("escalator")

	command := &cli.Command{
		Name:                  "careflow-escalator",
		Usage:                 "Sweep persisted phase-timeout wake-ups and raise escalations",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
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
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron expression for the escalation sweep",
				Value:   workflow.DefaultSweepSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
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

			logger.InfoContext(ctx, "Initializing Careflow escalation sweeper")

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

			validate := validator.New(validator.WithRequiredStructEnabled())
			caps := capabilities.NewLogSet(logger).Set()
			reg := cmd.NewRegistry(logger, caps)

			cat, err := cmd.NewCatalog(validate, reg, command.String("templates-path"))
			if err != nil {
				return err
			}

			tracer := otelhelper.NewNoopTracer()
			dispatcher := registry.NewDispatcher(reg, recorder)
			executor := workflow.NewExecutor(logger, cat, store, dispatcher, tracer)
			controller := workflow.NewController(logger, cat, store, lockManager, recorder, eventBus, executor, tracer)

			notifier := notify.NewEscalationNotifier(caps.Messenger, logger)
			if err := notifier.Register(eventBus); err != nil {
				return err
			}

			if err := eventBus.Subscribe(ctx); err != nil {
				return err
			}

			escalator := workflow.NewEscalator(logger, store, controller, command.String("sweep-schedule"))
			if err := escalator.Start(ctx); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-stop:
			case <-ctx.Done():
			}

			escalator.Stop()
			logger.InfoContext(ctx, "Careflow escalation sweeper shut down")

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
