package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/middleware"
	"github.com/noah-isme/gema-feedback-api/internal/service"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// ItemHandler exposes the questionnaire editor.
type ItemHandler struct {
	service service.ItemService
	logger  zerolog.Logger
}

// NewItemHandler constructs an item handler.
func NewItemHandler(service service.ItemService, logger zerolog.Logger) *ItemHandler {
	return &ItemHandler{
		service: service,
		logger:  logger.With().Str("component", "item_handler").Logger(),
	}
}

// Register wires item routes. Every route requires a facilitator.
func (h *ItemHandler) Register(router fiber.Router) {
	opts := middleware.AuthOptions{Role: middleware.AuthRoleFacilitator}
	items := router.Group("/feedbacks/:id/items")

	items.Get("/", middleware.WithAuth(h.list, opts))
	items.Post("/", middleware.WithAuth(h.create, opts))
	items.Put("/order", middleware.WithAuth(h.saveOrder, opts))
	items.Post("/pagebreak", middleware.WithAuth(h.createPagebreak, opts))
	items.Get("/:itemId", middleware.WithAuth(h.get, opts))
	items.Put("/:itemId", middleware.WithAuth(h.update, opts))
	items.Delete("/:itemId", middleware.WithAuth(h.delete, opts))
	items.Post("/:itemId/move-up", middleware.WithAuth(h.moveUp, opts))
	items.Post("/:itemId/move-down", middleware.WithAuth(h.moveDown, opts))
	items.Post("/:itemId/move", middleware.WithAuth(h.moveTo, opts))
	items.Post("/:itemId/required", middleware.WithAuth(h.switchRequired, opts))
	items.Get("/:itemId/depend-candidates", middleware.WithAuth(h.dependCandidates, opts))
	items.Put("/:itemId/graded-answer", middleware.WithAuth(h.gradedAnswer, opts))
}

func itemParams(c *fiber.Ctx) (uint, uint, error) {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return 0, 0, err
	}
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return 0, 0, err
	}
	return feedbackID, itemID, nil
}

func (h *ItemHandler) list(c *fiber.Ctx) error {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.List(c.UserContext(), feedbackID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "items retrieved", result)
}

func (h *ItemHandler) get(c *fiber.Ctx) error {
	feedbackID, itemID, err := itemParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.Get(c.UserContext(), feedbackID, itemID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item retrieved", result)
}

func (h *ItemHandler) create(c *fiber.Ctx) error {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}
	var req dto.ItemCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Create(c.UserContext(), feedbackID, req, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "item created", result)
}

func (h *ItemHandler) update(c *fiber.Ctx) error {
	feedbackID, itemID, err := itemParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req dto.ItemUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Update(c.UserContext(), feedbackID, itemID, req, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item updated", result)
}

func (h *ItemHandler) delete(c *fiber.Ctx) error {
	feedbackID, itemID, err := itemParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	if err := h.service.Delete(c.UserContext(), feedbackID, itemID, actorFromContext(c)); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item deleted", nil)
}

func (h *ItemHandler) moveUp(c *fiber.Ctx) error {
	feedbackID, itemID, err := itemParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.MoveUp(c.UserContext(), feedbackID, itemID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item moved", result)
}

func (h *ItemHandler) moveDown(c *fiber.Ctx) error {
	feedbackID, itemID, err := itemParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.MoveDown(c.UserContext(), feedbackID, itemID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item moved", result)
}

func (h *ItemHandler) moveTo(c *fiber.Ctx) error {
	feedbackID, itemID, err := itemParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req dto.ItemMoveRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.MoveTo(c.UserContext(), feedbackID, itemID, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item moved", result)
}

func (h *ItemHandler) saveOrder(c *fiber.Ctx) error {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}
	var req dto.ItemOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.SaveOrder(c.UserContext(), feedbackID, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item order saved", result)
}

func (h *ItemHandler) switchRequired(c *fiber.Ctx) error {
	feedbackID, itemID, err := itemParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.SwitchRequired(c.UserContext(), feedbackID, itemID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "item updated", result)
}

func (h *ItemHandler) createPagebreak(c *fiber.Ctx) error {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.CreatePagebreak(c.UserContext(), feedbackID, actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "page break created", result)
}

func (h *ItemHandler) dependCandidates(c *fiber.Ctx) error {
	feedbackID, itemID, err := itemParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.DependCandidates(c.UserContext(), feedbackID, itemID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "dependency candidates retrieved", result)
}

func (h *ItemHandler) gradedAnswer(c *fiber.Ctx) error {
	feedbackID, itemID, err := itemParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req dto.GradedAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.SetGradedAnswer(c.UserContext(), feedbackID, itemID, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "graded answer saved", result)
}
