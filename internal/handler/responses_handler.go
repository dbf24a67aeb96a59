package handler

import (
	"bytes"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/middleware"
	"github.com/noah-isme/gema-feedback-api/internal/service"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// ResponsesHandler exposes submitted responses to facilitators.
type ResponsesHandler struct {
	service service.ResponsesService
	logger  zerolog.Logger
}

// NewResponsesHandler constructs a responses handler.
func NewResponsesHandler(service service.ResponsesService, logger zerolog.Logger) *ResponsesHandler {
	return &ResponsesHandler{
		service: service,
		logger:  logger.With().Str("component", "responses_handler").Logger(),
	}
}

// Register wires response routes.
func (h *ResponsesHandler) Register(router fiber.Router) {
	opts := middleware.AuthOptions{Role: middleware.AuthRoleFacilitator}

	router.Get("/feedbacks/:id/nonrespondents", middleware.WithAuth(h.nonRespondents, opts))

	responses := router.Group("/feedbacks/:id/responses", middleware.RequireFacilitator())
	responses.Get("/", h.list)
	responses.Delete("/", h.deleteAll)
	responses.Get("/export", h.exportCSV)
	responses.Get("/:completedId", h.get)
	responses.Delete("/:completedId", h.delete)
}

func completedParams(c *fiber.Ctx) (uint, uint, error) {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return 0, 0, err
	}
	completedID, err := parseUintParam(c, "completedId")
	if err != nil {
		return 0, 0, err
	}
	return feedbackID, completedID, nil
}

func (h *ResponsesHandler) list(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}
	var query dto.ResponsesQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	result, err := h.service.ResponsesAnalysis(c.UserContext(), scope, query)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "responses retrieved", result)
}

func (h *ResponsesHandler) get(c *fiber.Ctx) error {
	feedbackID, completedID, err := completedParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.Get(c.UserContext(), feedbackID, completedID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "response retrieved", result)
}

func (h *ResponsesHandler) delete(c *fiber.Ctx) error {
	feedbackID, completedID, err := completedParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	if err := h.service.Delete(c.UserContext(), feedbackID, completedID, actorFromContext(c)); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "response deleted", nil)
}

func (h *ResponsesHandler) deleteAll(c *fiber.Ctx) error {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.DeleteAll(c.UserContext(), feedbackID, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "responses deleted", result)
}

func (h *ResponsesHandler) nonRespondents(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}
	var query dto.NonRespondentsQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	result, err := h.service.NonRespondents(c.UserContext(), scope, query)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "non respondents retrieved", result)
}

func (h *ResponsesHandler) exportCSV(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}
	groupID, err := parseQueryUint(c, "groupid")
	if err != nil {
		return badRequest(c, err)
	}

	var buf bytes.Buffer
	if err := h.service.ExportCSV(c.UserContext(), scope, groupID, &buf); err != nil {
		return respondError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="feedback-%d-responses.csv"`, scope.FeedbackID))
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}
