package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/middleware"
	"github.com/noah-isme/gema-feedback-api/internal/service"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// FeedbackHandler exposes feedback management endpoints.
type FeedbackHandler struct {
	service service.FeedbackService
	logger  zerolog.Logger
}

// NewFeedbackHandler constructs a feedback handler.
func NewFeedbackHandler(service service.FeedbackService, logger zerolog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		service: service,
		logger:  logger.With().Str("component", "feedback_handler").Logger(),
	}
}

// Register wires feedback routes.
func (h *FeedbackHandler) Register(router fiber.Router) {
	facilitator := middleware.AuthOptions{Role: middleware.AuthRoleFacilitator}
	anyone := middleware.AuthOptions{Role: middleware.AuthRoleAny, AllowGuest: true}

	router.Get("/courses/:courseId/feedbacks", middleware.WithAuth(h.listForCourse, anyone))
	router.Get("/courses/:courseId/feedbacks/own", middleware.WithAuth(h.listByCourse, facilitator))
	router.Post("/feedbacks", middleware.WithAuth(h.create, facilitator))
	router.Get("/feedbacks/:id", middleware.WithAuth(h.get, anyone))
	router.Put("/feedbacks/:id", middleware.WithAuth(h.update, facilitator))
	router.Delete("/feedbacks/:id", middleware.WithAuth(h.delete, facilitator))
	router.Get("/feedbacks/:id/courses", middleware.WithAuth(h.courseMap, facilitator))
	router.Put("/feedbacks/:id/courses", middleware.WithAuth(h.replaceCourseMap, facilitator))
	router.Get("/feedbacks/:id/events", middleware.WithAuth(h.events, facilitator))
}

func (h *FeedbackHandler) create(c *fiber.Ctx) error {
	var req dto.FeedbackCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Create(c.UserContext(), req, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback created", result)
}

func (h *FeedbackHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "feedback retrieved", result)
}

func (h *FeedbackHandler) listForCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.ListForCourse(c.UserContext(), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "feedbacks retrieved", result)
}

func (h *FeedbackHandler) listByCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.ListByCourse(c.UserContext(), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "feedbacks retrieved", result)
}

func (h *FeedbackHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}
	var req dto.FeedbackUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Update(c.UserContext(), id, req, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "feedback updated", result)
}

func (h *FeedbackHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "feedback deleted", nil)
}

func (h *FeedbackHandler) courseMap(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.CourseMap(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course map retrieved", result)
}

func (h *FeedbackHandler) replaceCourseMap(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}
	var req dto.CourseMapRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.ReplaceCourseMap(c.UserContext(), id, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course map updated", result)
}

func (h *FeedbackHandler) events(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}
	var query dto.EventLogQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	result, err := h.service.Events(c.UserContext(), id, query)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, result.Items, "events retrieved", fiber.Map{"pagination": result.Pagination})
}
