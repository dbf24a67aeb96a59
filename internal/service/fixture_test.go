package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/database"
	"github.com/noah-isme/gema-feedback-api/internal/items"
	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fixture struct {
	db       *gorm.DB
	stores   Stores
	validate *validator.Validate
	settings Settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	original := shuffle
	shuffle = func(int, func(i, j int)) {}
	t.Cleanup(func() { shuffle = original })

	return &fixture{
		db: db,
		stores: Stores{
			Feedbacks:  repository.NewFeedbackRepository(db),
			Items:      repository.NewItemRepository(db),
			Completeds: repository.NewCompletedRepository(db),
			Staging:    repository.NewStagingRepository(db),
			Courses:    repository.NewCourseRepository(db),
			Templates:  repository.NewTemplateRepository(db),
			Files:      repository.NewItemFileRepository(db),
			Events:     repository.NewEventLogRepository(db),
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		settings: Settings{SiteCourseID: 1, MinAnonymousGroupCount: 2, DefaultPageCount: 20},
	}
}

func (f *fixture) create(t *testing.T, values ...interface{}) {
	t.Helper()
	for _, value := range values {
		require.NoError(t, f.db.Create(value).Error)
	}
}

func (f *fixture) feedback(t *testing.T, feedback models.Feedback) models.Feedback {
	t.Helper()
	if feedback.Name == "" {
		feedback.Name = "Course evaluation"
	}
	if feedback.Anonymous == 0 {
		feedback.Anonymous = models.AnonymousNo
	}
	f.create(t, &feedback)
	return feedback
}

// items stores list in order, numbering positions from 1.
func (f *fixture) items(t *testing.T, feedbackID uint, list ...models.Item) []models.Item {
	t.Helper()
	for i := range list {
		list[i].FeedbackID = feedbackID
		list[i].Position = i + 1
		typ, err := items.Lookup(list[i].Typ)
		require.NoError(t, err)
		list[i].HasValue = typ.HasValue()
		f.create(t, &list[i])
	}
	return list
}

func (f *fixture) enrol(t *testing.T, courseID uint, user models.User, role string) {
	t.Helper()
	if err := f.db.Where("id = ?", user.ID).First(&models.User{}).Error; err != nil {
		f.create(t, &user)
	}
	f.create(t, &models.Enrolment{CourseID: courseID, UserID: user.ID, Role: role})
}

// enrolledStudent enrols id as a student of courseID.
func (f *fixture) enrolledStudent(t *testing.T, courseID, id uint) Actor {
	t.Helper()
	f.enrol(t, courseID, models.User{ID: id, FirstName: "Student", LastName: fmt.Sprint(id)}, models.RoleStudent)
	return student(id)
}

// submitted stores completed together with its values.
func (f *fixture) submitted(t *testing.T, completed models.Completed, values map[uint]string) models.Completed {
	t.Helper()
	f.create(t, &completed)
	for itemID, value := range values {
		f.create(t, &models.Value{CompletedID: completed.ID, ItemID: itemID, CourseID: completed.CourseID, Value: value})
	}
	return completed
}

func student(id uint) Actor {
	return Actor{UserID: id, Role: models.RoleStudent}
}

func teacher(id uint) Actor {
	return Actor{UserID: id, Role: models.RoleTeacher}
}

func textfield() models.Item {
	return models.Item{Typ: "textfield", Name: "Comment", Label: "comment", Presentation: "30|255"}
}

func numericItem() models.Item {
	return models.Item{Typ: "numeric", Name: "Hours", Label: "hours", Presentation: "0|10"}
}

func radio(options ...string) models.Item {
	return models.Item{Typ: "multichoice", Name: "Pick one", Label: "pick", Presentation: items.ChoicePresentation(items.SubtypeRadio, options, false)}
}

func pagebreak() models.Item {
	return models.Item{Typ: models.ItemTypePagebreak}
}

type recordedEvents struct {
	mu     sync.Mutex
	events []FeedbackEvent
}

func (r *recordedEvents) Record(_ context.Context, event FeedbackEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordedEvents) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, event := range r.events {
		names = append(names, event.Name)
	}
	return names
}

type recordedNotices struct {
	notices []SubmissionNotice
	err     error
}

func (r *recordedNotices) NotifySubmitted(_ context.Context, notice SubmissionNotice) error {
	r.notices = append(r.notices, notice)
	return r.err
}

type countingInvalidator struct {
	calls map[uint]int
}

func (c *countingInvalidator) Invalidate(_ context.Context, feedbackID uint) {
	if c.calls == nil {
		c.calls = map[uint]int{}
	}
	c.calls[feedbackID]++
}
