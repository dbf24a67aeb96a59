package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/items"
	"github.com/noah-isme/gema-feedback-api/internal/observability"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

// Warning codes returned with analysis data.
const (
	WarningInsufficientResponses = "insufficientresponsesforthisgroup"
	WarningNoResponses           = "noresponses"
)

// AnalysisService aggregates submitted responses per item.
type AnalysisService interface {
	AnalysisInvalidator
	Analysis(ctx context.Context, scope Scope, groupID uint) (dto.AnalysisResponse, error)
	CourseAnalysis(ctx context.Context, feedbackID, itemID uint) (dto.CourseAnalysisResponse, error)
	CompletedCourses(ctx context.Context, scope Scope) ([]dto.CourseResponse, error)
}

type analysisService struct {
	stores   Stores
	settings Settings
	cache    *redis.Client
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewAnalysisService builds the analysis service. cache may be nil.
func NewAnalysisService(stores Stores, settings Settings, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AnalysisService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &analysisService{
		stores:   stores,
		settings: settings.withDefaults(),
		cache:    cache,
		ttl:      ttl,
		logger:   logger.With().Str("component", "analysis_service").Logger(),
	}
}

func analysisVersionKey(feedbackID uint) string {
	return fmt.Sprintf("feedback:analysis:version:%d", feedbackID)
}

// Invalidate bumps the version of a feedback so older cache entries are never read again.
func (s *analysisService) Invalidate(ctx context.Context, feedbackID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Incr(ctx, analysisVersionKey(feedbackID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("feedback_id", feedbackID).Msg("failed to invalidate analysis cache")
	}
}

func (s *analysisService) cacheKey(ctx context.Context, feedbackID, courseID, groupID uint) string {
	if s.cache == nil {
		return ""
	}
	version, err := s.cache.Get(ctx, analysisVersionKey(feedbackID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn().Err(err).Uint("feedback_id", feedbackID).Msg("failed to read analysis cache version")
		return ""
	}
	return fmt.Sprintf("feedback:analysis:v%d:%d:%d:%d", version, feedbackID, courseID, groupID)
}

func (s *analysisService) Analysis(ctx context.Context, scope Scope, groupID uint) (dto.AnalysisResponse, error) {
	structure, err := loadStructure(ctx, s.stores, s.settings, scope)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}
	allowed, err := structure.CanViewAnalysis(ctx)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}
	if !allowed {
		return dto.AnalysisResponse{}, ErrPermissionDenied
	}
	if groupID > 0 && !scope.Actor.IsFacilitator() {
		member, err := s.stores.Courses.IsGroupMember(ctx, groupID, scope.Actor.UserID)
		if err != nil {
			return dto.AnalysisResponse{}, err
		}
		if !member {
			return dto.AnalysisResponse{}, ErrNotInGroup
		}
	}

	cacheKey := s.cacheKey(ctx, structure.Feedback().ID, structure.CourseID(), groupID)
	if cacheKey != "" {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			var response dto.AnalysisResponse
			if err := json.Unmarshal([]byte(cached), &response); err == nil {
				response.CacheHit = true
				observability.AnalysisCacheRequests().WithLabelValues("hit").Inc()
				return response, nil
			}
		}
	}

	response, err := s.compute(ctx, structure, groupID)
	if err != nil {
		observability.AnalysisCacheRequests().WithLabelValues("error").Inc()
		return dto.AnalysisResponse{}, err
	}

	if cacheKey != "" {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write analysis cache")
			}
		}
	}
	observability.AnalysisCacheRequests().WithLabelValues("miss").Inc()
	return response, nil
}

func (s *analysisService) compute(ctx context.Context, structure *Structure, groupID uint) (dto.AnalysisResponse, error) {
	count, err := structure.CountCompletedResponses(ctx, groupID)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}
	valueItems, err := structure.Items(ctx, true)
	if err != nil {
		return dto.AnalysisResponse{}, err
	}

	response := dto.AnalysisResponse{
		CompletedCount: count,
		ItemsCount:     len(valueItems),
		ItemsData:      []dto.ItemAnalysis{},
		Warnings:       []dto.Warning{},
	}

	if structure.IsAnonymous() && groupID > 0 && count < int64(s.settings.MinAnonymousGroupCount) {
		response.Warnings = append(response.Warnings, dto.Warning{
			Item:        "feedback",
			ItemID:      structure.Feedback().ID,
			WarningCode: WarningInsufficientResponses,
			Message:     "Insufficient number of responses for this group",
		})
		return response, nil
	}
	if count == 0 {
		response.Warnings = append(response.Warnings, dto.Warning{
			Item:        "feedback",
			ItemID:      structure.Feedback().ID,
			WarningCode: WarningNoResponses,
			Message:     "There are no responses yet",
		})
	}

	filter := repository.ValueFilter{GroupID: groupID}
	if groupID == 0 {
		filter.CourseID = structure.CourseID()
	}
	for _, item := range valueItems {
		typ, err := items.Lookup(item.Typ)
		if err != nil {
			s.logger.Warn().Str("type", item.Typ).Uint("item_id", item.ID).Msg("skipping item of unknown type")
			continue
		}
		values, err := s.stores.Completeds.ItemValues(ctx, item.ID, filter)
		if err != nil {
			return dto.AnalysisResponse{}, err
		}
		raw := make([]string, 0, len(values))
		for _, value := range values {
			raw = append(raw, value.Value)
		}
		if structure.IsAnonymous() {
			shuffle(len(raw), func(i, j int) { raw[i], raw[j] = raw[j], raw[i] })
		}
		response.ItemsData = append(response.ItemsData, dto.ItemAnalysis{
			Item: dto.NewItemResponse(item),
			Data: typ.Analyse(item, raw),
		})
	}
	return response, nil
}

// CourseAnalysis compares the average answer of a rated item across the
// courses a site feedback was answered from.
func (s *analysisService) CourseAnalysis(ctx context.Context, feedbackID, itemID uint) (dto.CourseAnalysisResponse, error) {
	item, err := s.stores.Items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseAnalysisResponse{}, ErrItemNotFound
		}
		return dto.CourseAnalysisResponse{}, err
	}
	if item.FeedbackID != feedbackID {
		return dto.CourseAnalysisResponse{}, ErrItemNotFound
	}
	typ, err := items.Lookup(item.Typ)
	if err != nil {
		return dto.CourseAnalysisResponse{}, ErrUnknownItemType
	}
	averager, ok := typ.(items.Averager)
	if !ok {
		return dto.CourseAnalysisResponse{}, fmt.Errorf("%w: %s answers have no average", ErrInvalidItem, item.Typ)
	}

	rows, err := s.stores.Completeds.CourseValues(ctx, itemID)
	if err != nil {
		return dto.CourseAnalysisResponse{}, err
	}
	sums := make(map[uint]float64)
	counts := make(map[uint]int)
	order := make([]uint, 0)
	for _, row := range rows {
		number, ok := averager.NumericValue(item, row.Value)
		if !ok {
			continue
		}
		if _, seen := counts[row.CourseID]; !seen {
			order = append(order, row.CourseID)
		}
		sums[row.CourseID] += number
		counts[row.CourseID]++
	}

	courses, err := s.stores.Courses.ListCourses(ctx, order)
	if err != nil {
		return dto.CourseAnalysisResponse{}, err
	}
	names := make(map[uint]string, len(courses))
	for _, course := range courses {
		names[course.ID] = course.ShortName
	}

	averages := make([]dto.CourseAverage, 0, len(order))
	for _, courseID := range order {
		averages = append(averages, dto.CourseAverage{
			CourseID:  courseID,
			ShortName: names[courseID],
			Count:     counts[courseID],
			Average:   sums[courseID] / float64(counts[courseID]),
		})
	}
	sort.SliceStable(averages, func(i, j int) bool {
		return averages[i].Average > averages[j].Average
	})

	return dto.CourseAnalysisResponse{Item: dto.NewItemResponse(item), Courses: averages}, nil
}

func (s *analysisService) CompletedCourses(ctx context.Context, scope Scope) ([]dto.CourseResponse, error) {
	structure, err := loadStructure(ctx, s.stores, s.settings, scope)
	if err != nil {
		return nil, err
	}
	courses, err := structure.CompletedCourses(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewCourseResponseSlice(courses), nil
}
