package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/bloomcare/careflow/pkg/persistence"
	"github.com/bloomcare/careflow/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps engine errors onto problem responses.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsInstanceNotFound(err):
		return notFound(c, "workflow instance not found")

	case errors.Is(err, workflow.ErrTemplateNotFound):
		return notFound(c, "workflow template not found")

	case errors.Is(err, workflow.ErrGateNotSatisfied):
		return conflict(c, "gate_not_satisfied", err.Error())

	case errors.Is(err, workflow.ErrPhaseNotGated),
		errors.Is(err, workflow.ErrAdvanceNotAllowed):
		return badRequest(c, err.Error())

	case errors.Is(err, workflow.ErrInstanceNotActive),
		errors.Is(err, workflow.ErrInvalidStatusChange):
		return conflict(c, "invalid_state", err.Error())

	case persistence.IsVersionConflict(err):
		return conflict(c, "concurrent_update", "instance was updated concurrently, retry")

	default:
		return internalError(c, err)
	}
}
