package middleware

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide logger. init also installs it as the slog default.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	OwnerIDKey   contextKey = "owner_id"
	TraceIDKey   contextKey = "trace_id"
)

// ctxHandler adds request and job identifiers carried by the context to every record.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid, ok := ctx.Value(RequestIDKey).(string); ok {
		r.AddAttrs(slog.String("request_id", rid))
	}
	if oid, ok := ctx.Value(OwnerIDKey).(uint); ok {
		r.AddAttrs(slog.Uint64("owner_id", uint64(oid)))
	}
	if tid, ok := ctx.Value(TraceIDKey).(string); ok {
		r.AddAttrs(slog.String("trace_id", tid))
	}
	if runID := observability.ExtractCorrelationID(ctx); runID != "" {
		r.AddAttrs(slog.String("run_id", runID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

// NewLogger builds the context-aware logger: JSON in production, text elsewhere.
func NewLogger(w io.Writer, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(&ctxHandler{handler})
}

func init() {
	Logger = NewLogger(os.Stdout, os.Getenv("APP_ENV"))
	slog.SetDefault(Logger)
	observability.SetLogger(Logger)
}

// ContextMiddleware copies the request id, authenticated owner and trace id
// from Fiber locals into the request context so service and repository logs
// carry them. Install it again after AuthRequired to pick up the owner.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok {
			ctx = context.WithValue(ctx, RequestIDKey, rid)
		}
		if oid, ok := c.Locals(UserIDLocal).(uint); ok {
			ctx = context.WithValue(ctx, OwnerIDKey, oid)
		}
		if tid, ok := c.Locals("traceID").(string); ok {
			ctx = context.WithValue(ctx, TraceIDKey, tid)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger logs one line per request, keyed by route template.
// Server errors log at error level, client errors at warn. Probe and scrape
// endpoints are not logged.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if untracedPaths[c.Path()] {
			return c.Next()
		}
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		fields := []any{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("route", c.Route().Path),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		// The owner is only known after AuthRequired, which runs later in the chain.
		if oid, ok := c.Locals(UserIDLocal).(uint); ok {
			fields = append(fields, slog.Uint64("owner_id", uint64(oid)))
		}

		ctx := c.UserContext()
		switch {
		case err != nil:
			fields = append(fields, slog.String("error", err.Error()))
			Logger.ErrorContext(ctx, "request failed", fields...)
		case status >= fiber.StatusInternalServerError:
			Logger.ErrorContext(ctx, "request failed", fields...)
		case status >= fiber.StatusBadRequest:
			Logger.WarnContext(ctx, "request rejected", fields...)
		default:
			Logger.InfoContext(ctx, "request processed", fields...)
		}
		return err
	}
}
