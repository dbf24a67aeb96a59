package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/items"
	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

// Stores bundles the repositories shared by the feedback use cases.
type Stores struct {
	Feedbacks  repository.FeedbackRepository
	Items      repository.ItemRepository
	Completeds repository.CompletedRepository
	Staging    repository.StagingRepository
	Courses    repository.CourseRepository
	Templates  repository.TemplateRepository
	Files      repository.ItemFileRepository
	Events     repository.EventLogRepository
}

// Settings carries deployment specific constants.
type Settings struct {
	SiteCourseID           uint
	MinAnonymousGroupCount int
	DefaultPageCount       int
}

func (s Settings) withDefaults() Settings {
	if s.SiteCourseID == 0 {
		s.SiteCourseID = 1
	}
	if s.MinAnonymousGroupCount <= 0 {
		s.MinAnonymousGroupCount = 2
	}
	if s.DefaultPageCount <= 0 {
		s.DefaultPageCount = 20
	}
	return s
}

// shuffle orders anonymous responses. Tests replace it for determinism.
var shuffle = rand.Shuffle

// Structure is a read model over one feedback as seen by one caller from one course.
type Structure struct {
	stores   Stores
	settings Settings
	feedback models.Feedback
	courseID uint
	actor    Actor

	allItems []models.Item
	loaded   bool
}

func loadStructure(ctx context.Context, stores Stores, settings Settings, scope Scope) (*Structure, error) {
	feedback, err := stores.Feedbacks.GetByID(ctx, scope.FeedbackID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, err
	}

	structure := &Structure{
		stores:   stores,
		settings: settings,
		feedback: feedback,
		actor:    scope.Actor,
	}
	// Only site feedbacks are completed from other courses.
	if feedback.CourseID == settings.SiteCourseID {
		structure.courseID = scope.CourseID
	}
	return structure, nil
}

// Feedback returns the underlying activity.
func (s *Structure) Feedback() models.Feedback {
	return s.feedback
}

// CourseID is the course a site feedback is completed from, zero otherwise.
func (s *Structure) CourseID() uint {
	return s.courseID
}

// ResponseCourseID is the course recorded on new responses.
func (s *Structure) ResponseCourseID() uint {
	if s.courseID > 0 {
		return s.courseID
	}
	return s.feedback.CourseID
}

// IsSiteFeedback reports whether the feedback lives on the site front page.
func (s *Structure) IsSiteFeedback() bool {
	return s.feedback.CourseID == s.settings.SiteCourseID
}

// Items returns the items ordered by position. Value items carry a sequential ItemNumber.
func (s *Structure) Items(ctx context.Context, hasValueOnly bool) ([]models.Item, error) {
	if !s.loaded {
		list, err := s.stores.Items.List(ctx, repository.ItemOwner{FeedbackID: s.feedback.ID})
		if err != nil {
			return nil, err
		}
		number := 1
		for i := range list {
			list[i].ItemNumber = 0
			if list[i].HasValue {
				list[i].ItemNumber = number
				number++
			}
		}
		s.allItems = list
		s.loaded = true
	}

	if !hasValueOnly {
		return s.allItems, nil
	}
	filtered := make([]models.Item, 0, len(s.allItems))
	for _, item := range s.allItems {
		if item.HasValue {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// IsEmpty reports whether nothing but pagebreaks was added.
func (s *Structure) IsEmpty(ctx context.Context) (bool, error) {
	list, err := s.Items(ctx, false)
	if err != nil {
		return false, err
	}
	for _, item := range list {
		if !item.IsPagebreak() {
			return false, nil
		}
	}
	return true, nil
}

// IsAnonymous reports whether responses are stored without identity.
func (s *Structure) IsAnonymous() bool {
	return s.feedback.IsAnonymous()
}

// PageAfterSubmit returns the sanitised completion page.
func (s *Structure) PageAfterSubmit() string {
	return items.SanitizeHTML(s.feedback.PageAfterSubmit)
}

// IsAlreadySubmitted reports whether the caller has a response in the current
// course, or in any course when anyCourse is set. Guests are never tracked.
func (s *Structure) IsAlreadySubmitted(ctx context.Context, anyCourse bool) (bool, error) {
	if s.actor.IsGuest() {
		return false, nil
	}
	courseID := s.courseID
	if anyCourse {
		courseID = 0
	}
	return s.stores.Completeds.Exists(ctx, s.feedback.ID, s.actor.UserID, courseID)
}

// CanViewAnalysis reports whether the caller may see aggregated results.
func (s *Structure) CanViewAnalysis(ctx context.Context) (bool, error) {
	if s.actor.IsFacilitator() {
		return true, nil
	}
	if !s.feedback.PublishStats {
		return false, nil
	}
	if s.actor.IsGuest() {
		return s.IsSiteFeedback(), nil
	}
	enrolled, err := s.isEnrolled(ctx)
	if err != nil || !enrolled {
		return false, err
	}
	return s.IsAlreadySubmitted(ctx, true)
}

// isEnrolled reports whether the caller belongs to the course owning the
// feedback. Site feedbacks are open to every user.
func (s *Structure) isEnrolled(ctx context.Context) (bool, error) {
	if s.IsSiteFeedback() {
		return true, nil
	}
	return s.stores.Courses.IsEnrolled(ctx, s.feedback.CourseID, s.actor.UserID)
}

// CheckCourseIsMapped reports whether a site feedback may be completed from
// the current course. Site feedbacks without a mapping are offered everywhere.
func (s *Structure) CheckCourseIsMapped(ctx context.Context) (bool, error) {
	if !s.IsSiteFeedback() || s.courseID == 0 {
		return true, nil
	}
	mapped, err := s.stores.Feedbacks.ListMappedCourses(ctx, s.feedback.ID)
	if err != nil {
		return false, err
	}
	if len(mapped) == 0 {
		return true, nil
	}
	for _, id := range mapped {
		if id == s.courseID {
			return true, nil
		}
	}
	return false, nil
}

// ShuffleAnonymResponses numbers anonymous responses 1..N in random order once
// a response without a number exists.
func (s *Structure) ShuffleAnonymResponses(ctx context.Context) error {
	pending, err := s.stores.Completeds.CountUnshuffled(ctx, s.feedback.ID)
	if err != nil {
		return err
	}
	if pending == 0 {
		return nil
	}

	ids, err := s.stores.Completeds.AnonymousIDs(ctx, s.feedback.ID)
	if err != nil {
		return err
	}
	shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	numbers := make(map[uint]int, len(ids))
	for index, id := range ids {
		numbers[id] = index + 1
	}
	if err := s.stores.Completeds.AssignRandomResponses(ctx, numbers); err != nil {
		return fmt.Errorf("shuffle anonymous responses: %w", err)
	}
	return nil
}

// CountCompletedResponses counts responses in a group, the current course or overall.
func (s *Structure) CountCompletedResponses(ctx context.Context, groupID uint) (int64, error) {
	filter := repository.CompletedFilter{FeedbackID: s.feedback.ID}
	if groupID > 0 {
		filter.GroupID = groupID
	} else if s.courseID > 0 {
		filter.CourseID = s.courseID
	}
	return s.stores.Completeds.Count(ctx, filter)
}

// CompletedCourses lists the courses a site feedback received responses from.
func (s *Structure) CompletedCourses(ctx context.Context) ([]models.Course, error) {
	if !s.IsSiteFeedback() {
		return []models.Course{}, nil
	}
	ids, err := s.stores.Completeds.CourseIDs(ctx, s.feedback.ID)
	if err != nil {
		return nil, err
	}
	courses, err := s.stores.Courses.ListCourses(ctx, ids)
	if err != nil {
		return nil, err
	}
	if courses == nil {
		courses = []models.Course{}
	}
	return courses, nil
}

// CanComplete reports whether the caller may answer the feedback. Guests may
// only answer site feedbacks, students only feedbacks of their courses.
func (s *Structure) CanComplete(ctx context.Context) (bool, error) {
	if s.actor.IsGuest() {
		return s.IsSiteFeedback() && s.actor.GuestID != "", nil
	}
	if s.actor.Role != models.RoleStudent {
		return false, nil
	}
	return s.isEnrolled(ctx)
}
