package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/handler"
	"github.com/noah-isme/gema-feedback-api/internal/items"
	"github.com/noah-isme/gema-feedback-api/internal/service"
)

type stubAnalysisService struct {
	service.AnalysisService
	scope   service.Scope
	groupID uint
	result  dto.AnalysisResponse
}

func (s *stubAnalysisService) Analysis(_ context.Context, scope service.Scope, groupID uint) (dto.AnalysisResponse, error) {
	s.scope = scope
	s.groupID = groupID
	return s.result, nil
}

func TestAnalysisContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "analysis.schema.json"))
	require.NoError(t, err)
	schema, err := jsonschema.NewCompiler().Compile("file://" + schemaPath)
	require.NoError(t, err)

	average := 6.5
	rating := 2.0
	first, second := 1, 2
	svc := &stubAnalysisService{result: dto.AnalysisResponse{
		CompletedCount: 2,
		ItemsCount:     2,
		ItemsData: []dto.ItemAnalysis{
			{
				Item: dto.ItemResponse{ID: 4, Typ: "multichoicerated", Name: "Pace", Label: "pace", HasValue: true, Position: 1, ItemNumber: &first},
				Data: items.Analysis{Total: 2, Average: &rating, Options: []items.OptionStat{
					{Index: 1, Text: "slow", Rating: &rating, Count: 2, Quotient: 1},
					{Index: 2, Text: "fast", Count: 0, Quotient: 0},
				}},
			},
			{
				Item: dto.ItemResponse{ID: 5, Typ: "numeric", Name: "Hours", Label: "hours", HasValue: true, Position: 2, ItemNumber: &second},
				Data: items.Analysis{Total: 2, Average: &average, Values: []string{"5", "8"}},
			},
		},
		Warnings: []dto.Warning{{WarningCode: "insufficientresponses", Message: "not enough responses"}},
		CacheHit: true,
	}}

	app := newTestApp(identity(1, "teacher", ""), handler.NewAnalysisHandler(svc, zerolog.Nop()).Register)
	resp := doJSON(t, app, http.MethodGet, "/api/v1/feedbacks/3/analysis?courseid=2&groupid=7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, uint(7), svc.groupID)
	require.Equal(t, uint(2), svc.scope.CourseID)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
