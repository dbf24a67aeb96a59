package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/middleware"
	"github.com/noah-isme/gema-feedback-api/internal/service"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(parsed), nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseQueryUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if id, ok := c.Locals("user_id").(uint); ok {
		return id
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if role, ok := c.Locals("user_role").(string); ok {
		return role
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	actor := service.Actor{
		UserID: userIDFromContext(c),
		Role:   userRoleFromContext(c),
	}
	if actor.UserID == 0 {
		if guest, ok := c.Locals("guest_id").(string); ok {
			actor.GuestID = guest
		}
	}
	return actor
}

// scopeFromRequest reads the feedback id from the path and the course a site
// feedback is answered from from the courseid query parameter.
func scopeFromRequest(c *fiber.Ctx) (service.Scope, error) {
	feedbackID, err := parseUintParam(c, "id")
	if err != nil {
		return service.Scope{}, err
	}
	courseID, err := parseQueryUint(c, "courseid")
	if err != nil {
		return service.Scope{}, err
	}
	return service.Scope{FeedbackID: feedbackID, CourseID: courseID, Actor: actorFromContext(c)}, nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func validationDetails(err validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(err))
	for _, fieldErr := range err {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}

type errorMapping struct {
	target error
	status int
}

var errorStatuses = []errorMapping{
	{service.ErrFeedbackNotFound, fiber.StatusNotFound},
	{service.ErrItemNotFound, fiber.StatusNotFound},
	{service.ErrCompletedNotFound, fiber.StatusNotFound},
	{service.ErrTemplateNotFound, fiber.StatusNotFound},
	{service.ErrFileNotFound, fiber.StatusNotFound},
	{service.ErrNotStarted, fiber.StatusNotFound},
	{service.ErrNotCompleted, fiber.StatusNotFound},
	{service.ErrPermissionDenied, fiber.StatusForbidden},
	{service.ErrNotInGroup, fiber.StatusForbidden},
	{service.ErrCourseNotMapped, fiber.StatusForbidden},
	{service.ErrFeedbackNotOpen, fiber.StatusConflict},
	{service.ErrFeedbackEmpty, fiber.StatusConflict},
	{service.ErrAlreadySubmitted, fiber.StatusConflict},
	{service.ErrPagebreakExists, fiber.StatusConflict},
	{service.ErrNothingToSubmit, fiber.StatusConflict},
	{service.ErrAnonymousFeedback, fiber.StatusConflict},
	{service.ErrSiteFeedback, fiber.StatusConflict},
	{service.ErrNotSiteFeedback, fiber.StatusConflict},
	{service.ErrInvalidRequest, fiber.StatusBadRequest},
	{service.ErrInvalidPage, fiber.StatusBadRequest},
	{service.ErrUnknownItemType, fiber.StatusBadRequest},
	{service.ErrInvalidItem, fiber.StatusBadRequest},
	{service.ErrInvalidDependency, fiber.StatusBadRequest},
	{service.ErrInvalidImport, fiber.StatusBadRequest},
	{service.ErrInvalidSchedule, fiber.StatusBadRequest},
	{service.ErrUnsupportedFile, fiber.StatusUnsupportedMediaType},
	{service.ErrFileTooLarge, fiber.StatusRequestEntityTooLarge},
	{service.ErrStorageUnavailable, fiber.StatusServiceUnavailable},
}

// respondError converts service errors into the API envelope. Unknown errors
// are logged and hidden behind a 500.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(validationErrors))
	}
	var responseErrors service.ResponseErrors
	if errors.As(err, &responseErrors) {
		details := make(map[string]string, len(responseErrors))
		for itemID, reason := range responseErrors {
			details[strconv.FormatUint(uint64(itemID), 10)] = reason
		}
		return utils.Fail(c, fiber.StatusUnprocessableEntity, "invalid responses", details)
	}
	for _, mapping := range errorStatuses {
		if errors.Is(err, mapping.target) {
			return utils.SendError(c, mapping.status, err.Error())
		}
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func badRequest(c *fiber.Ctx, err error) error {
	return utils.SendError(c, fiber.StatusBadRequest, err.Error())
}
