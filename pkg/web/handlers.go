// Package web exposes the engine's REST surface: the inbound intake
// trigger, the manual advance signal, administrative operations and the
// progress query.
package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/bloomcare/careflow/pkg/catalog"
	"github.com/bloomcare/careflow/pkg/persistence"
	"github.com/bloomcare/careflow/pkg/workflow"
)

type APIHandlers struct {
	controller *workflow.Controller
	catalog    *catalog.Catalog
	store      persistence.Persistence
	validator  *validator.Validate
}

func NewAPIHandlers(
	controller *workflow.Controller,
	cat *catalog.Catalog,
	store persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		controller: controller,
		catalog:    cat,
		store:      store,
		validator:  validate,
	}
}

// InitializeWorkflow starts a lifecycle for a subject and runs phase 1.
func (h *APIHandlers) InitializeWorkflow(c fiber.Ctx) error {
	var req InitializeWorkflowRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.controller.Initialize(c.Context(), req.SubjectID, req.TemplateID, req.Metadata)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(WorkflowResponse{Instance: instance})
}

// GetWorkflow returns one instance.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	instance, err := h.store.Instances().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(WorkflowResponse{Instance: instance})
}

// AdvanceWorkflow confirms the current phase's gate with the supplied
// action data.
func (h *APIHandlers) AdvanceWorkflow(c fiber.Ctx) error {
	var req AdvanceWorkflowRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")

	if err := h.controller.ManualAdvance(c.Context(), id, req.ActionData); err != nil {
		return handleEngineError(c, err)
	}

	instance, err := h.store.Instances().GetByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(WorkflowResponse{Instance: instance})
}

// GetWorkflowProgress reports the instance's phase, status and completion
// percentage.
func (h *APIHandlers) GetWorkflowProgress(c fiber.Ctx) error {
	progress, err := h.controller.Progress(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(progress)
}

// PauseWorkflow suspends an active instance.
func (h *APIHandlers) PauseWorkflow(c fiber.Ctx) error {
	if err := h.controller.Pause(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ResumeWorkflow reactivates a paused instance.
func (h *APIHandlers) ResumeWorkflow(c fiber.Ctx) error {
	if err := h.controller.Resume(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// CancelWorkflow terminates an instance and clears its timers.
func (h *APIHandlers) CancelWorkflow(c fiber.Ctx) error {
	if err := h.controller.Cancel(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetTemplates lists the catalog.
func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"templates": h.catalog.Templates()})
}

// GetTemplate returns one catalog entry.
func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	template, ok := h.catalog.Template(c.Params("id"))
	if !ok {
		return notFound(c, "workflow template not found")
	}

	return c.JSON(template)
}

// HealthCheck verifies the store is reachable.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.store.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy"})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
