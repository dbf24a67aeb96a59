package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/middleware"
	"github.com/noah-isme/gema-feedback-api/internal/service"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// TemplateHandler exposes item templates.
type TemplateHandler struct {
	service service.TemplateService
	logger  zerolog.Logger
}

// NewTemplateHandler constructs a template handler.
func NewTemplateHandler(service service.TemplateService, logger zerolog.Logger) *TemplateHandler {
	return &TemplateHandler{
		service: service,
		logger:  logger.With().Str("component", "template_handler").Logger(),
	}
}

// Register wires template routes.
func (h *TemplateHandler) Register(router fiber.Router) {
	opts := middleware.AuthOptions{Role: middleware.AuthRoleFacilitator}

	router.Post("/feedbacks/:id/templates", middleware.WithAuth(h.save, opts))
	router.Post("/feedbacks/:id/templates/apply", middleware.WithAuth(h.apply, opts))
	router.Get("/courses/:courseId/templates", middleware.WithAuth(h.list, opts))
	router.Get("/templates/:templateId/items", middleware.WithAuth(h.items, opts))
	router.Delete("/templates/:templateId", middleware.WithAuth(h.delete, opts))
}

func (h *TemplateHandler) save(c *fiber.Ctx) error {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}
	var req dto.TemplateCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.SaveAsTemplate(c.UserContext(), feedbackID, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "template saved", result)
}

func (h *TemplateHandler) apply(c *fiber.Ctx) error {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}
	var req dto.TemplateApplyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Apply(c.UserContext(), feedbackID, req, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "template applied", result)
}

func (h *TemplateHandler) list(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.List(c.UserContext(), courseID, c.Query("scope"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "templates retrieved", result)
}

func (h *TemplateHandler) items(c *fiber.Ctx) error {
	templateID, err := parseUintParam(c, "templateId")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.Items(c.UserContext(), templateID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "template items retrieved", result)
}

func (h *TemplateHandler) delete(c *fiber.Ctx) error {
	templateID, err := parseUintParam(c, "templateId")
	if err != nil {
		return badRequest(c, err)
	}

	if err := h.service.Delete(c.UserContext(), templateID); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "template deleted", nil)
}
