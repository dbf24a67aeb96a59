package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/models"
)

func fieldName(item models.Item) string {
	return fmt.Sprintf("%s_%d", item.Typ, item.ID)
}

func newCompletionFixture(t *testing.T) (*fixture, CompletionService, *recordedEvents, *recordedNotices, *countingInvalidator) {
	f := newFixture(t)
	events := &recordedEvents{}
	notices := &recordedNotices{}
	invalidator := &countingInvalidator{}
	svc := NewCompletionService(f.stores, f.settings, f.validate, events, notices, invalidator, testLogger())
	return f, svc, events, notices, invalidator
}

func TestCompletionServiceSubmitsAcrossPages(t *testing.T) {
	f, svc, events, notices, invalidator := newCompletionFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 5, EmailNotification: true, PageAfterSubmit: "<p>Thanks<script>x</script></p>"})
	text := textfield()
	text.Required = true
	list := f.items(t, feedback.ID, text, pagebreak(), numericItem())
	scope := Scope{FeedbackID: feedback.ID, Actor: f.enrolledStudent(t, 5, 7)}

	launch, err := svc.Launch(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, 0, launch.GoPage)

	_, err = svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{Page: 0})
	var problems ResponseErrors
	require.ErrorAs(t, err, &problems)
	require.Equal(t, "required", problems[list[0].ID])

	result, err := svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page:      0,
		Responses: []dto.ResponseInput{{Name: fieldName(list[0]), Value: "great course"}},
	})
	require.NoError(t, err)
	require.False(t, result.Completed)
	require.Equal(t, 1, result.JumpTo)

	launch, err = svc.Launch(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, 1, launch.GoPage)

	staged, err := svc.UnfinishedResponses(ctx, scope)
	require.NoError(t, err)
	require.Len(t, staged, 1)

	result, err = svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page:      1,
		Responses: []dto.ResponseInput{{ItemID: list[2].ID, Value: "4,5"}},
	})
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, "<p>Thanks</p>", result.CompletionPageContents)

	last, err := svc.LastCompleted(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, uint(7), last.UserID)

	finished, err := svc.FinishedResponses(ctx, scope)
	require.NoError(t, err)
	values := map[uint]string{}
	for _, value := range finished {
		values[value.ItemID] = value.Value
	}
	require.Equal(t, map[uint]string{list[0].ID: "great course", list[2].ID: "4.5"}, values)

	_, err = svc.CurrentTmp(ctx, scope)
	require.ErrorIs(t, err, ErrNotStarted)

	_, err = svc.Launch(ctx, scope)
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	require.Contains(t, events.names(), models.EventResponseSubmitted)
	require.Len(t, notices.notices, 1)
	require.Equal(t, uint(7), notices.notices[0].UserID)
	require.Equal(t, 1, invalidator.calls[feedback.ID])
}

func TestCompletionServiceSkipsHiddenPagesAndDropsHiddenValues(t *testing.T) {
	f, svc, _, _, _ := newCompletionFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 5})
	choice := radio("yes", "no")
	list := f.items(t, feedback.ID, choice, pagebreak(), textfield(), pagebreak(), numericItem())
	list[2].DependItem = list[0].ID
	list[2].DependValue = "yes"
	require.NoError(t, f.db.Save(&list[2]).Error)
	scope := Scope{FeedbackID: feedback.ID, Actor: f.enrolledStudent(t, 5, 8)}

	result, err := svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page:      0,
		Responses: []dto.ResponseInput{{Name: fieldName(list[0]), Value: "1"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.JumpTo)

	page, err := svc.PageItems(ctx, scope, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.True(t, page.HasPrevPage)
	require.True(t, page.HasNextPage)

	result, err = svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page:       1,
		GoPrevious: true,
		Responses:  []dto.ResponseInput{{Name: fieldName(list[2]), Value: "only when yes"}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.JumpTo)

	result, err = svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page:      0,
		Responses: []dto.ResponseInput{{Name: fieldName(list[0]), Value: "2"}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.JumpTo)

	page, err = svc.PageItems(ctx, scope, 1)
	require.NoError(t, err)
	require.Empty(t, page.Items)

	result, err = svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page:      2,
		Responses: []dto.ResponseInput{{Name: fieldName(list[4]), Value: "3"}},
	})
	require.NoError(t, err)
	require.True(t, result.Completed)

	finished, err := svc.FinishedResponses(ctx, scope)
	require.NoError(t, err)
	require.Len(t, finished, 2)
	for _, value := range finished {
		require.NotEqual(t, list[2].ID, value.ItemID)
	}
}

func TestCompletionServiceRejectsInvalidAccess(t *testing.T) {
	f, svc, _, _, _ := newCompletionFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	closed := f.feedback(t, models.Feedback{CourseID: 5, TimeClose: &past})
	f.items(t, closed.ID, textfield())
	empty := f.feedback(t, models.Feedback{CourseID: 5})
	f.items(t, empty.ID, pagebreak())
	open := f.feedback(t, models.Feedback{CourseID: 5})
	f.items(t, open.ID, textfield())
	f.enrolledStudent(t, 5, 3)

	_, err := svc.Launch(ctx, Scope{FeedbackID: closed.ID, Actor: student(3)})
	require.ErrorIs(t, err, ErrFeedbackNotOpen)

	_, err = svc.Launch(ctx, Scope{FeedbackID: empty.ID, Actor: student(3)})
	require.ErrorIs(t, err, ErrFeedbackEmpty)

	_, err = svc.Launch(ctx, Scope{FeedbackID: open.ID, Actor: teacher(4)})
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Launch(ctx, Scope{FeedbackID: open.ID, Actor: Actor{GuestID: "guest-1"}})
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Launch(ctx, Scope{FeedbackID: 999, Actor: student(3)})
	require.ErrorIs(t, err, ErrFeedbackNotFound)

	_, err = svc.PageItems(ctx, Scope{FeedbackID: open.ID, Actor: student(3)}, 4)
	require.ErrorIs(t, err, ErrInvalidPage)
}

func TestCompletionServiceRequiresEnrolment(t *testing.T) {
	f, svc, _, _, _ := newCompletionFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 5})
	list := f.items(t, feedback.ID, textfield())
	f.enrolledStudent(t, 6, 99)
	scope := Scope{FeedbackID: feedback.ID, Actor: student(99)}

	_, err := svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page:      0,
		Responses: []dto.ResponseInput{{Name: fieldName(list[0]), Value: "outsider"}},
	})
	require.ErrorIs(t, err, ErrPermissionDenied)

	access, err := svc.AccessInformation(ctx, scope)
	require.NoError(t, err)
	require.False(t, access.CanComplete)

	var total int64
	require.NoError(t, f.db.Model(&models.Completed{}).Where("feedback_id = ?", feedback.ID).Count(&total).Error)
	require.Zero(t, total)
	require.NoError(t, f.db.Model(&models.CompletedTmp{}).Where("feedback_id = ?", feedback.ID).Count(&total).Error)
	require.Zero(t, total)
}

func TestCompletionServiceGuestAnswersSiteFeedback(t *testing.T) {
	f, svc, _, _, _ := newCompletionFixture(t)
	ctx := context.Background()

	site := f.feedback(t, models.Feedback{CourseID: 1, MultipleSubmit: true})
	list := f.items(t, site.ID, textfield())
	f.create(t, &models.SiteCourseMap{FeedbackID: site.ID, CourseID: 4})

	guest := Actor{GuestID: "session-42"}
	_, err := svc.Launch(ctx, Scope{FeedbackID: site.ID, CourseID: 3, Actor: guest})
	require.ErrorIs(t, err, ErrCourseNotMapped)

	scope := Scope{FeedbackID: site.ID, CourseID: 4, Actor: guest}
	access, err := svc.AccessInformation(ctx, scope)
	require.NoError(t, err)
	require.True(t, access.CanComplete)
	require.False(t, access.CanEditItems)

	result, err := svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page:      0,
		Responses: []dto.ResponseInput{{Name: fieldName(list[0]), Value: "from a guest"}},
	})
	require.NoError(t, err)
	require.True(t, result.Completed)

	var stored models.Completed
	require.NoError(t, f.db.Where("feedback_id = ?", site.ID).First(&stored).Error)
	require.Equal(t, uint(0), stored.UserID)
	require.Equal(t, uint(4), stored.CourseID)

	_, err = svc.LastCompleted(ctx, scope)
	require.ErrorIs(t, err, ErrNotCompleted)
}

func TestCompletionServiceNumbersAnonymousResponses(t *testing.T) {
	f, svc, _, _, _ := newCompletionFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 5, Anonymous: models.AnonymousYes})
	list := f.items(t, feedback.ID, textfield())

	for _, userID := range []uint{11, 12} {
		scope := Scope{FeedbackID: feedback.ID, Actor: f.enrolledStudent(t, 5, userID)}
		result, err := svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
			Page:      0,
			Responses: []dto.ResponseInput{{Name: fieldName(list[0]), Value: "anon"}},
		})
		require.NoError(t, err)
		require.True(t, result.Completed)
	}

	var completed []models.Completed
	require.NoError(t, f.db.Where("feedback_id = ?", feedback.ID).Order("random_response").Find(&completed).Error)
	require.Len(t, completed, 2)
	require.Equal(t, 1, completed[0].RandomResponse)
	require.Equal(t, 2, completed[1].RandomResponse)
	require.Equal(t, models.AnonymousYes, completed[0].AnonymousResponse)

	_, err := svc.LastCompleted(ctx, Scope{FeedbackID: feedback.ID, Actor: student(11)})
	require.ErrorIs(t, err, ErrAnonymousFeedback)
}

func TestCompletionServiceScoresGradedItems(t *testing.T) {
	f, svc, _, _, _ := newCompletionFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 5})
	choice, hours := radio("right", "wrong"), numericItem()
	choice.IsGraded, hours.IsGraded = true, true
	list := f.items(t, feedback.ID, choice, hours)
	f.create(t,
		&models.GradedQuestion{ItemID: list[0].ID, Answer: "1", Grade: 2},
		&models.GradedQuestion{ItemID: list[1].ID, Answer: "5", Grade: 2},
	)

	scope := Scope{FeedbackID: feedback.ID, Actor: f.enrolledStudent(t, 5, 21)}
	_, err := svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page: 0,
		Responses: []dto.ResponseInput{
			{Name: fieldName(list[0]), Value: "1"},
			{Name: fieldName(list[1]), Value: "3"},
		},
	})
	require.NoError(t, err)

	last, err := svc.LastCompleted(ctx, scope)
	require.NoError(t, err)
	require.InDelta(t, 50.0, last.Mark, 0.001)
}

func TestCompletionServiceResubmitOverwritesLastResponse(t *testing.T) {
	f, svc, _, _, _ := newCompletionFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 5, MultipleSubmit: true})
	list := f.items(t, feedback.ID, textfield())
	scope := Scope{FeedbackID: feedback.ID, Actor: f.enrolledStudent(t, 5, 30)}

	for _, answer := range []string{"first", "second"} {
		_, err := svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
			Page:      0,
			Responses: []dto.ResponseInput{{Name: fieldName(list[0]), Value: answer}},
		})
		require.NoError(t, err)
	}

	var total int64
	require.NoError(t, f.db.Model(&models.Completed{}).Where("feedback_id = ?", feedback.ID).Count(&total).Error)
	require.Equal(t, int64(1), total)

	finished, err := svc.FinishedResponses(ctx, scope)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	require.Equal(t, "second", finished[0].Value)
}

func TestCompletionServiceDropsTransitivelyHiddenValues(t *testing.T) {
	f, svc, _, _, _ := newCompletionFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 5})
	list := f.items(t, feedback.ID, radio("yes", "no"), pagebreak(), radio("yes", "no"), pagebreak(), textfield(), pagebreak(), numericItem())
	list[2].DependItem, list[2].DependValue = list[0].ID, "yes"
	list[4].DependItem, list[4].DependValue = list[2].ID, "yes"
	require.NoError(t, f.db.Save(&list[2]).Error)
	require.NoError(t, f.db.Save(&list[4]).Error)
	scope := Scope{FeedbackID: feedback.ID, Actor: f.enrolledStudent(t, 5, 40)}

	steps := []struct {
		page     int
		previous bool
		item     models.Item
		value    string
		jumpTo   int
	}{
		{page: 0, item: list[0], value: "1", jumpTo: 1},
		{page: 1, item: list[2], value: "1", jumpTo: 2},
		{page: 2, previous: true, item: list[4], value: "staged below", jumpTo: 1},
		{page: 1, previous: true, item: list[2], value: "1", jumpTo: 0},
		{page: 0, item: list[0], value: "2", jumpTo: 3},
	}
	for _, step := range steps {
		result, err := svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
			Page:       step.page,
			GoPrevious: step.previous,
			Responses:  []dto.ResponseInput{{Name: fieldName(step.item), Value: step.value}},
		})
		require.NoError(t, err)
		require.Equal(t, step.jumpTo, result.JumpTo)
	}

	staged, err := svc.UnfinishedResponses(ctx, scope)
	require.NoError(t, err)
	require.Len(t, staged, 3)

	result, err := svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page:      3,
		Responses: []dto.ResponseInput{{Name: fieldName(list[6]), Value: "2"}},
	})
	require.NoError(t, err)
	require.True(t, result.Completed)

	finished, err := svc.FinishedResponses(ctx, scope)
	require.NoError(t, err)
	itemIDs := make([]uint, 0, len(finished))
	for _, value := range finished {
		itemIDs = append(itemIDs, value.ItemID)
	}
	require.ElementsMatch(t, []uint{list[0].ID, list[6].ID}, itemIDs)

	var residual int64
	require.NoError(t, f.db.Model(&models.ValueTmp{}).Count(&residual).Error)
	require.Zero(t, residual)
}

func TestCompletionServiceToleratesCircularDependencies(t *testing.T) {
	f, svc, _, _, _ := newCompletionFixture(t)
	ctx := context.Background()

	feedback := f.feedback(t, models.Feedback{CourseID: 5})
	list := f.items(t, feedback.ID, textfield(), pagebreak(), textfield())
	list[0].DependItem, list[0].DependValue = list[2].ID, "loop"
	list[2].DependItem, list[2].DependValue = list[0].ID, "loop"
	require.NoError(t, f.db.Save(&list[0]).Error)
	require.NoError(t, f.db.Save(&list[2]).Error)
	scope := Scope{FeedbackID: feedback.ID, Actor: f.enrolledStudent(t, 5, 41)}

	launch, err := svc.Launch(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, 0, launch.GoPage)

	page, err := svc.PageItems(ctx, scope, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	result, err := svc.ProcessPage(ctx, scope, dto.ProcessPageRequest{
		Page:      0,
		Responses: []dto.ResponseInput{{Name: fieldName(list[0]), Value: "loop"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.JumpTo)

	page, err = svc.PageItems(ctx, scope, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}
