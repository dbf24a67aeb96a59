package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidRequest indicates request parameters the use case rejects.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrFeedbackNotFound indicates the requested feedback does not exist.
	ErrFeedbackNotFound = errors.New("feedback not found")
	// ErrItemNotFound indicates the requested item does not exist or belongs elsewhere.
	ErrItemNotFound = errors.New("item not found")
	// ErrCompletedNotFound indicates the requested response does not exist.
	ErrCompletedNotFound = errors.New("response not found")
	// ErrTemplateNotFound indicates the requested template does not exist.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrFileNotFound indicates the requested attachment does not exist.
	ErrFileNotFound = errors.New("item file not found")
	// ErrFeedbackNotOpen indicates the feedback is outside its open window.
	ErrFeedbackNotOpen = errors.New("feedback is not open")
	// ErrFeedbackEmpty indicates the feedback has no items to answer.
	ErrFeedbackEmpty = errors.New("feedback has no items")
	// ErrAlreadySubmitted indicates a single submission feedback was already answered.
	ErrAlreadySubmitted = errors.New("feedback already submitted")
	// ErrPermissionDenied indicates the caller lacks the capability for the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrCourseNotMapped indicates a site feedback is not offered in the requested course.
	ErrCourseNotMapped = errors.New("feedback is not available in this course")
	// ErrInvalidPage indicates a page index outside the questionnaire.
	ErrInvalidPage = errors.New("invalid page")
	// ErrNothingToSubmit indicates a submission without any staged answers.
	ErrNothingToSubmit = errors.New("no answers to submit")
	// ErrUnknownItemType indicates an item type without an implementation.
	ErrUnknownItemType = errors.New("unknown item type")
	// ErrInvalidItem indicates item attributes the type rejects.
	ErrInvalidItem = errors.New("invalid item")
	// ErrInvalidDependency indicates a dependitem that cannot be depended on.
	ErrInvalidDependency = errors.New("invalid item dependency")
	// ErrPagebreakExists indicates the last item already is a pagebreak.
	ErrPagebreakExists = errors.New("feedback already ends with a pagebreak")
	// ErrAnonymousFeedback indicates an operation that would reveal respondents.
	ErrAnonymousFeedback = errors.New("operation not available for anonymous feedback")
	// ErrSiteFeedback indicates an operation that is meaningless for site feedbacks.
	ErrSiteFeedback = errors.New("operation not available for site feedback")
	// ErrNotSiteFeedback indicates a course mapping on a feedback outside the site course.
	ErrNotSiteFeedback = errors.New("course mapping requires a site feedback")
	// ErrInvalidSchedule indicates a close time before the open time.
	ErrInvalidSchedule = errors.New("time_close must be after time_open")
	// ErrNotInGroup indicates the caller may not see the requested group.
	ErrNotInGroup = errors.New("not in group")
	// ErrInvalidImport indicates an XML document that cannot be imported.
	ErrInvalidImport = errors.New("invalid import file")
	// ErrUnsupportedFile indicates an attachment with a disallowed content type.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrStorageUnavailable indicates attachments are not configured.
	ErrStorageUnavailable = errors.New("file storage is not configured")
)

// ResponseErrors maps item ids to the reason their submitted value was rejected.
type ResponseErrors map[uint]string

func (e ResponseErrors) Error() string {
	ids := make([]int, 0, len(e))
	for id := range e {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("item %d: %s", id, e[uint(id)]))
	}
	return "invalid responses: " + strings.Join(parts, "; ")
}
