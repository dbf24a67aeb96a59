package utils_test

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/utils"
)

func TestEnvelopes(t *testing.T) {
	cases := []struct {
		name    string
		handler fiber.Handler
		status  int
		body    string
	}{
		{
			name: "ok with meta",
			handler: func(c *fiber.Ctx) error {
				return utils.OK(c, []string{"textfield_4"}, "", fiber.Map{"cache_hit": true})
			},
			status: fiber.StatusOK,
			body:   `{"success":true,"data":["textfield_4"],"message":"success","meta":{"cache_hit":true}}`,
		},
		{
			name: "created",
			handler: func(c *fiber.Ctx) error {
				return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback created", fiber.Map{"id": 3})
			},
			status: fiber.StatusCreated,
			body:   `{"success":true,"data":{"id":3},"message":"feedback created"}`,
		},
		{
			name: "zero status falls back to ok",
			handler: func(c *fiber.Ctx) error {
				return utils.SendSuccessWithStatus(c, 0, "", nil)
			},
			status: fiber.StatusOK,
			body:   `{"success":true,"message":"success"}`,
		},
		{
			name: "invalid answers",
			handler: func(c *fiber.Ctx) error {
				return utils.Fail(c, fiber.StatusUnprocessableEntity, "invalid responses", map[string]string{"12": "required"})
			},
			status: fiber.StatusUnprocessableEntity,
			body:   `{"success":false,"message":"invalid responses","details":{"12":"required"}}`,
		},
		{
			name: "error without message",
			handler: func(c *fiber.Ctx) error {
				return utils.SendError(c, fiber.StatusConflict, "")
			},
			status: fiber.StatusConflict,
			body:   `{"success":false,"message":"error"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", tc.handler)

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())
			require.True(t, json.Valid(raw))
			require.JSONEq(t, tc.body, string(raw))
		})
	}
}
