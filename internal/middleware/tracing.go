package middleware

import (
	"strconv"
	"strings"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// untracedPaths are probe and scrape endpoints hit too often to be worth a span.
var untracedPaths = map[string]bool{
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// TracingMiddleware starts a server span per request. The span is renamed to
// the matched route template once routing is done, and carries the owner,
// post and job the request acted on.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if untracedPaths[c.Path()] {
			return c.Next()
		}

		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("http.client_ip", c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Locals("spanID", span.SpanContext().SpanID().String())
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
		span.SetAttributes(requestAttributes(c, route)...)

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= fiber.StatusInternalServerError:
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
		return err
	}
}

// requestAttributes describes what the request touched in domain terms.
func requestAttributes(c *fiber.Ctx, route string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if uid, ok := c.Locals(UserIDLocal).(uint); ok {
		attrs = append(attrs, attribute.Int64("owner.id", int64(uid)))
	}
	switch {
	case strings.HasPrefix(route, "/api/posts/:id"):
		if id, err := strconv.ParseUint(c.Params("id"), 10, 64); err == nil {
			attrs = append(attrs, attribute.Int64("post.id", int64(id)))
		}
	case strings.HasPrefix(route, "/api/jobs/"):
		attrs = append(attrs, attribute.String("job.name", strings.TrimPrefix(route, "/api/jobs/")))
	}
	return attrs
}
