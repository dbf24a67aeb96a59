package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/handler"
	"github.com/noah-isme/gema-feedback-api/internal/service"
)

type stubCompletionService struct {
	service.CompletionService
	scope   service.Scope
	page    int
	request dto.ProcessPageRequest
	result  dto.ProcessPageResponse
	err     error
}

func (s *stubCompletionService) AccessInformation(_ context.Context, scope service.Scope) (dto.AccessInformationResponse, error) {
	s.scope = scope
	return dto.AccessInformationResponse{CanComplete: true, IsOpen: true}, s.err
}

func (s *stubCompletionService) PageItems(_ context.Context, scope service.Scope, page int) (dto.PageItemsResponse, error) {
	s.scope = scope
	s.page = page
	return dto.PageItemsResponse{Items: []dto.ItemResponse{{ID: 4, Typ: "textfield"}}, HasNextPage: true}, s.err
}

func (s *stubCompletionService) ProcessPage(_ context.Context, scope service.Scope, req dto.ProcessPageRequest) (dto.ProcessPageResponse, error) {
	s.scope = scope
	s.request = req
	return s.result, s.err
}

func completionApp(svc service.CompletionService, auth fiber.Handler) *fiber.App {
	return newTestApp(auth, handler.NewCompletionHandler(svc, zerolog.Nop()).Register)
}

func TestCompletionHandlerPassesScope(t *testing.T) {
	svc := &stubCompletionService{}
	app := completionApp(svc, identity(7, "student", ""))

	resp := doJSON(t, app, http.MethodGet, "/api/v1/feedbacks/3/completion/access?courseid=9", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var access dto.AccessInformationResponse
	body := decodeEnvelope(t, resp, &access)
	require.True(t, body.Success)
	require.True(t, access.CanComplete)
	require.Equal(t, service.Scope{FeedbackID: 3, CourseID: 9, Actor: service.Actor{UserID: 7, Role: "student"}}, svc.scope)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/feedbacks/3/completion/pages/2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 2, svc.page)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/feedbacks/3/completion/pages/-1", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/feedbacks/abc/completion/access", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/feedbacks/3/completion/access?courseid=x", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCompletionHandlerAcceptsGuests(t *testing.T) {
	svc := &stubCompletionService{result: dto.ProcessPageResponse{JumpTo: 1}}

	anonymous := completionApp(svc, identity(0, "", ""))
	resp := doJSON(t, anonymous, http.MethodPost, "/api/v1/feedbacks/3/completion/pages", dto.ProcessPageRequest{})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	guest := completionApp(svc, identity(0, "", "browser-1"))
	resp = doJSON(t, guest, http.MethodPost, "/api/v1/feedbacks/3/completion/pages?courseid=5", dto.ProcessPageRequest{
		Page:      0,
		Responses: []dto.ResponseInput{{Name: "textfield_4", Value: "hello"}},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result dto.ProcessPageResponse
	body := decodeEnvelope(t, resp, &result)
	require.Equal(t, "page saved", body.Message)
	require.Equal(t, 1, result.JumpTo)
	require.Equal(t, "browser-1", svc.scope.Actor.GuestID)
	require.Zero(t, svc.scope.Actor.UserID)
	require.Equal(t, uint(5), svc.scope.CourseID)
	require.Equal(t, "hello", svc.request.Responses[0].Value)
}

func TestCompletionHandlerReportsSubmission(t *testing.T) {
	svc := &stubCompletionService{result: dto.ProcessPageResponse{Completed: true, CompletionPageContents: "<p>Thanks</p>"}}
	app := completionApp(svc, identity(7, "student", ""))

	resp := doJSON(t, app, http.MethodPost, "/api/v1/feedbacks/3/completion/pages", dto.ProcessPageRequest{Page: 1})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result dto.ProcessPageResponse
	body := decodeEnvelope(t, resp, &result)
	require.Equal(t, "response submitted", body.Message)
	require.True(t, result.Completed)
}

func TestCompletionHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"closed", service.ErrFeedbackNotOpen, fiber.StatusConflict, service.ErrFeedbackNotOpen.Error()},
		{"wrapped", fmt.Errorf("submit: %w", service.ErrAlreadySubmitted), fiber.StatusConflict, "submit: " + service.ErrAlreadySubmitted.Error()},
		{"missing", service.ErrFeedbackNotFound, fiber.StatusNotFound, service.ErrFeedbackNotFound.Error()},
		{"unmapped", service.ErrCourseNotMapped, fiber.StatusForbidden, service.ErrCourseNotMapped.Error()},
		{"page", service.ErrInvalidPage, fiber.StatusBadRequest, service.ErrInvalidPage.Error()},
		{"unexpected", errors.New("database is gone"), fiber.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := completionApp(&stubCompletionService{err: tc.err}, identity(7, "student", ""))
			resp := doJSON(t, app, http.MethodPost, "/api/v1/feedbacks/3/completion/pages", dto.ProcessPageRequest{})
			require.Equal(t, tc.status, resp.StatusCode)

			body := decodeEnvelope(t, resp, nil)
			require.False(t, body.Success)
			require.Equal(t, tc.message, body.Message)
		})
	}
}

func TestCompletionHandlerReportsInvalidAnswers(t *testing.T) {
	svc := &stubCompletionService{err: service.ResponseErrors{4: "required", 12: "value out of range"}}
	app := completionApp(svc, identity(7, "student", ""))

	resp := doJSON(t, app, http.MethodPost, "/api/v1/feedbacks/3/completion/pages", dto.ProcessPageRequest{})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeEnvelope(t, resp, nil)
	require.Equal(t, "invalid responses", body.Message)
	require.Equal(t, map[string]string{"4": "required", "12": "value out of range"}, body.Details)
}
