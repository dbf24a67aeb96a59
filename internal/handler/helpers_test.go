package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Meta    json.RawMessage   `json:"meta"`
	Details map[string]string `json:"details"`
}

// identity mimics the JWT middleware. A zero user id leaves the request
// anonymous, optionally carrying a guest id.
func identity(userID uint, role, guestID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID > 0 {
			c.Locals("user_id", userID)
			c.Locals("user_role", role)
		}
		if guestID != "" {
			c.Locals("guest_id", guestID)
		}
		return c.Next()
	}
}

func newTestApp(auth fiber.Handler, register func(fiber.Router)) *fiber.App {
	app := fiber.New()
	register(app.Group("/api/v1", auth))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func decodeEnvelope(t *testing.T, resp *http.Response, data interface{}) envelope {
	t.Helper()
	var body envelope
	decodeResponse(t, resp, &body)
	if data != nil {
		require.NoError(t, json.Unmarshal(body.Data, data))
	}
	return body
}
