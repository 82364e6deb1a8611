package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionController(t *testing.T) {
	ac := NewAdmissionController(5*time.Second, "/health/live")
	assert.Equal(t, Accepting, ac.State())

	app := fiber.New()
	app.Use(ac.Middleware())
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/api/posts", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.True(t, ac.Drain())
	assert.False(t, ac.Drain(), "second drain is a no-op")
	assert.Equal(t, Draining, ac.State())
	assert.Equal(t, "draining", ac.State().String())

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("Retry-After"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "liveness stays reachable while draining")
}

func TestAdmissionControllersAreIndependent(t *testing.T) {
	a := NewAdmissionController(0)
	b := NewAdmissionController(0)
	a.Drain()
	assert.Equal(t, Draining, a.State())
	assert.Equal(t, Accepting, b.State())
}
