package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger
	Logger = NewLogger(&buf, "production")
	t.Cleanup(func() { Logger = prev })
	return &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestNewLogger_AddsContextIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production").With("component", "dispatch")

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, OwnerIDKey, uint(9))
	ctx = observability.WithCorrelationID(ctx, "run-42")
	logger.InfoContext(ctx, "dispatched")

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, float64(9), lines[0]["owner_id"])
	assert.Equal(t, "run-42", lines[0]["run_id"])
	assert.Equal(t, "dispatch", lines[0]["component"])
	assert.NotContains(t, lines[0], "trace_id")
}

func TestStructuredLogger(t *testing.T) {
	buf := captureLogs(t)

	app := fiber.New()
	app.Use(StructuredLogger())
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post("/api/posts/:id/approve", func(c *fiber.Ctx) error {
		c.Locals(UserIDLocal, uint(3))
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/api/posts/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })
	app.Post("/api/jobs/dispatch", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusInternalServerError) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health/live", nil),
		httptest.NewRequest(http.MethodPost, "/api/posts/5/approve", nil),
		httptest.NewRequest(http.MethodGet, "/api/posts/6", nil),
		httptest.NewRequest(http.MethodPost, "/api/jobs/dispatch", nil),
	} {
		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	lines := logLines(t, buf)
	require.Len(t, lines, 3, "probe requests are not logged")

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "/api/posts/:id/approve", lines[0]["route"])
	assert.Equal(t, "/api/posts/5/approve", lines[0]["path"])
	assert.Equal(t, float64(3), lines[0]["owner_id"])

	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, float64(http.StatusNotFound), lines[1]["status"])
	assert.NotContains(t, lines[1], "owner_id")

	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, "/api/jobs/dispatch", lines[2]["route"])
}

func TestContextMiddleware_CarriesOwner(t *testing.T) {
	var seen uint
	app := fiber.New()
	app.Get("/api/stats",
		func(c *fiber.Ctx) error {
			c.Locals(UserIDLocal, uint(11))
			return c.Next()
		},
		ContextMiddleware(),
		func(c *fiber.Ctx) error {
			seen, _ = c.UserContext().Value(OwnerIDKey).(uint)
			return c.SendStatus(fiber.StatusOK)
		},
	)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, uint(11), seen)
}
