// Package main provides the Careflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/bloomcare/careflow/pkg/audit"
	"github.com/bloomcare/careflow/pkg/cmd"
	"github.com/bloomcare/careflow/pkg/eventbus"
	"github.com/bloomcare/careflow/pkg/locks"
	"github.com/bloomcare/careflow/pkg/persistence"
	"github.com/bloomcare/careflow/pkg/registry"
	"github.com/bloomcare/careflow/pkg/web"
	"github.com/bloomcare/careflow/pkg/workflow"
)

type API struct {
	logger     *slog.Logger
	handlers   *web.APIHandlers
	controller *workflow.Controller
}

func NewAPI(
	apiLogger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	lockManager locks.Manager,
	recorder audit.Recorder,
	tracer trace.Tracer,
	templatesPath string,
) (*API, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	cat, err := cmd.NewCatalog(validate, reg, templatesPath)
	if err != nil {
		return nil, err
	}

	dispatcher := registry.NewDispatcher(reg, recorder)
	executor := workflow.NewExecutor(apiLogger, cat, store, dispatcher, tracer)
	controller := workflow.NewController(apiLogger, cat, store, lockManager, recorder, eventBus, executor, tracer)

	return &API{
		logger:     apiLogger,
		handlers:   web.NewAPIHandlers(controller, cat, store, validate),
		controller: controller,
	}, nil
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Careflow API")
	})

	w := app.Group("/workflows")
	w.Post("/", a.handlers.InitializeWorkflow)
	w.Get("/:id", a.handlers.GetWorkflow)
	w.Post("/:id/advance", a.handlers.AdvanceWorkflow)
	w.Get("/:id/progress", a.handlers.GetWorkflowProgress)
	w.Post("/:id/pause", a.handlers.PauseWorkflow)
	w.Post("/:id/resume", a.handlers.ResumeWorkflow)
	w.Post("/:id/cancel", a.handlers.CancelWorkflow)

	t := app.Group("/templates")
	t.Get("/", a.handlers.GetTemplates)
	t.Get("/:id", a.handlers.GetTemplate)

	app.Get("/health", a.handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
