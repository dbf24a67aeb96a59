package handler

import (
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/middleware"
	"github.com/noah-isme/gema-feedback-api/internal/service"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

const maxImportBytes = 5 * 1024 * 1024

// ExchangeHandler exports and imports item definitions as XML.
type ExchangeHandler struct {
	service service.ExchangeService
	logger  zerolog.Logger
}

// NewExchangeHandler constructs an exchange handler.
func NewExchangeHandler(service service.ExchangeService, logger zerolog.Logger) *ExchangeHandler {
	return &ExchangeHandler{
		service: service,
		logger:  logger.With().Str("component", "exchange_handler").Logger(),
	}
}

// Register wires exchange routes.
func (h *ExchangeHandler) Register(router fiber.Router) {
	opts := middleware.AuthOptions{Role: middleware.AuthRoleFacilitator}

	router.Get("/feedbacks/:id/export", middleware.WithAuth(h.export, opts))
	router.Post("/feedbacks/:id/import", middleware.WithAuth(h.importItems, opts))
}

func (h *ExchangeHandler) export(c *fiber.Ctx) error {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	document, err := h.service.Export(c.UserContext(), feedbackID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="feedback-%d.xml"`, feedbackID))
	return c.Status(fiber.StatusOK).Send(document)
}

// importItems accepts the document as a multipart "file" field or as the raw
// request body.
func (h *ExchangeHandler) importItems(c *fiber.Ctx) error {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err)
	}

	document, err := importDocument(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.Import(c.UserContext(), feedbackID, document, c.QueryBool("deleteold"), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "items imported", result)
}

func importDocument(c *fiber.Ctx) ([]byte, error) {
	if file, err := c.FormFile("file"); err == nil {
		if file.Size > maxImportBytes {
			return nil, fmt.Errorf("import file exceeds %d bytes", maxImportBytes)
		}
		handle, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("read import file: %w", err)
		}
		defer handle.Close()
		return io.ReadAll(io.LimitReader(handle, maxImportBytes))
	}

	body := c.Body()
	if len(body) == 0 {
		return nil, errors.New("import document is required")
	}
	if len(body) > maxImportBytes {
		return nil, fmt.Errorf("import document exceeds %d bytes", maxImportBytes)
	}
	document := make([]byte, len(body))
	copy(document, body)
	return document, nil
}
