package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/middleware"
	"github.com/noah-isme/gema-feedback-api/internal/service"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// CompletionHandler lets respondents answer a feedback page by page.
type CompletionHandler struct {
	service service.CompletionService
	logger  zerolog.Logger
}

// NewCompletionHandler constructs a completion handler.
func NewCompletionHandler(service service.CompletionService, logger zerolog.Logger) *CompletionHandler {
	return &CompletionHandler{
		service: service,
		logger:  logger.With().Str("component", "completion_handler").Logger(),
	}
}

// Register wires completion routes. Guests identified by a guest id may
// answer site feedbacks.
func (h *CompletionHandler) Register(router fiber.Router) {
	opts := middleware.AuthOptions{Role: middleware.AuthRoleAny, AllowGuest: true}
	completion := router.Group("/feedbacks/:id/completion")

	completion.Get("/access", middleware.WithAuth(h.access, opts))
	completion.Post("/view", middleware.WithAuth(h.view, opts))
	completion.Get("/items", middleware.WithAuth(h.items, opts))
	completion.Get("/tmp", middleware.WithAuth(h.currentTmp, opts))
	completion.Post("/launch", middleware.WithAuth(h.launch, opts))
	completion.Get("/pages/:page", middleware.WithAuth(h.pageItems, opts))
	completion.Post("/pages",
		middleware.RateLimit("process_page", 30, time.Minute),
		middleware.WithAuth(h.processPage, opts),
	)
	completion.Get("/unfinished", middleware.WithAuth(h.unfinished, opts))
	completion.Get("/finished", middleware.WithAuth(h.finished, opts))
	completion.Get("/last", middleware.WithAuth(h.lastCompleted, opts))
}

func (h *CompletionHandler) access(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.AccessInformation(c.UserContext(), scope)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "access information retrieved", result)
}

func (h *CompletionHandler) view(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	if err := h.service.View(c.UserContext(), scope, c.QueryBool("moduleviewed")); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "view recorded", nil)
}

func (h *CompletionHandler) items(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.Items(c.UserContext(), scope)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "items retrieved", result)
}

func (h *CompletionHandler) currentTmp(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.CurrentTmp(c.UserContext(), scope)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "unfinished response retrieved", result)
}

func (h *CompletionHandler) launch(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.Launch(c.UserContext(), scope)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "feedback launched", result)
}

func (h *CompletionHandler) pageItems(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}
	page, err := strconv.Atoi(c.Params("page"))
	if err != nil || page < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}

	result, err := h.service.PageItems(c.UserContext(), scope, page)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "page retrieved", result)
}

func (h *CompletionHandler) processPage(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req dto.ProcessPageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.ProcessPage(c.UserContext(), scope, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	message := "page saved"
	if result.Completed {
		message = "response submitted"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *CompletionHandler) unfinished(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.UnfinishedResponses(c.UserContext(), scope)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "unfinished responses retrieved", result)
}

func (h *CompletionHandler) finished(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.FinishedResponses(c.UserContext(), scope)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "finished responses retrieved", result)
}

func (h *CompletionHandler) lastCompleted(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.LastCompleted(c.UserContext(), scope)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "last response retrieved", result)
}
