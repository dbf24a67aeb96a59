package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/middleware"
	"github.com/noah-isme/gema-feedback-api/internal/service"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// AttachmentHandler manages files attached to items.
type AttachmentHandler struct {
	service service.AttachmentService
	logger  zerolog.Logger
}

// NewAttachmentHandler constructs an attachment handler.
func NewAttachmentHandler(service service.AttachmentService, logger zerolog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		service: service,
		logger:  logger.With().Str("component", "attachment_handler").Logger(),
	}
}

// Register wires attachment routes.
func (h *AttachmentHandler) Register(router fiber.Router) {
	opts := middleware.AuthOptions{Role: middleware.AuthRoleFacilitator}
	files := router.Group("/items/:itemId/files")

	files.Get("/", middleware.WithAuth(h.list, opts))
	files.Post("/", middleware.WithAuth(h.upload, opts))
	files.Delete("/:fileId", middleware.WithAuth(h.remove, opts))
}

func (h *AttachmentHandler) list(c *fiber.Ctx) error {
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.List(c.UserContext(), itemID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "files retrieved", result)
}

func (h *AttachmentHandler) upload(c *fiber.Ctx) error {
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return badRequest(c, err)
	}
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	result, err := h.service.Add(c.UserContext(), itemID, file)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "file attached", result)
}

func (h *AttachmentHandler) remove(c *fiber.Ctx) error {
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return badRequest(c, err)
	}
	fileID, err := parseUintParam(c, "fileId")
	if err != nil {
		return badRequest(c, err)
	}

	if err := h.service.Remove(c.UserContext(), itemID, fileID); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "file removed", nil)
}
