package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/middleware"
	"github.com/noah-isme/gema-feedback-api/internal/service"
	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

// AnalysisHandler exposes aggregated results.
type AnalysisHandler struct {
	service service.AnalysisService
	logger  zerolog.Logger
}

// NewAnalysisHandler constructs an analysis handler.
func NewAnalysisHandler(service service.AnalysisService, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		logger:  logger.With().Str("component", "analysis_handler").Logger(),
	}
}

// Register wires analysis routes.
func (h *AnalysisHandler) Register(router fiber.Router) {
	anyone := middleware.AuthOptions{Role: middleware.AuthRoleAny, AllowGuest: true}
	facilitator := middleware.AuthOptions{Role: middleware.AuthRoleFacilitator}
	analysis := router.Group("/feedbacks/:id/analysis")

	analysis.Get("/", middleware.WithAuth(h.analysis, anyone))
	analysis.Get("/courses", middleware.WithAuth(h.completedCourses, facilitator))
	analysis.Get("/items/:itemId/courses", middleware.WithAuth(h.courseAnalysis, facilitator))
}

func (h *AnalysisHandler) analysis(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}
	groupID, err := parseQueryUint(c, "groupid")
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.Analysis(c.UserContext(), scope, groupID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, result, "analysis retrieved", fiber.Map{"cache_hit": result.CacheHit})
}

func (h *AnalysisHandler) completedCourses(c *fiber.Ctx) error {
	scope, err := scopeFromRequest(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.CompletedCourses(c.UserContext(), scope)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "courses retrieved", result)
}

func (h *AnalysisHandler) courseAnalysis(c *fiber.Ctx) error {
	feedbackID, itemID, err := itemParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	result, err := h.service.CourseAnalysis(c.UserContext(), feedbackID, itemID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course analysis retrieved", result)
}
