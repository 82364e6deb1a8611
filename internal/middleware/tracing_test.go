package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() { observability.Tracer = prev })
	return sr
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware(t *testing.T) {
	sr := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post("/api/posts/:id/approve", func(c *fiber.Ctx) error {
		c.Locals(UserIDLocal, uint(4))
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/jobs/dispatch", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusInternalServerError)
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health/live", nil),
		httptest.NewRequest(http.MethodPost, "/api/posts/12/approve", nil),
		httptest.NewRequest(http.MethodPost, "/api/jobs/dispatch", nil),
	} {
		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	spans := sr.Ended()
	require.Len(t, spans, 2, "health probes are not traced")

	approve := spans[0]
	assert.Equal(t, "POST /api/posts/:id/approve", approve.Name())
	attrs := spanAttrs(approve)
	assert.Equal(t, int64(12), attrs["post.id"].AsInt64())
	assert.Equal(t, int64(4), attrs["owner.id"].AsInt64())
	assert.Equal(t, "/api/posts/:id/approve", attrs["http.route"].AsString())
	assert.Equal(t, codes.Unset, approve.Status().Code)

	job := spans[1]
	assert.Equal(t, "POST /api/jobs/dispatch", job.Name())
	assert.Equal(t, "dispatch", spanAttrs(job)["job.name"].AsString())
	assert.Equal(t, codes.Error, job.Status().Code)
}
