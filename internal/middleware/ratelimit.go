package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// Quota is a per-caller allowance on one route.
type Quota struct {
	// Name keys the counter; empty uses the route template, so every
	// /posts/:id/regenerate call shares one bucket regardless of id.
	Name   string
	Limit  int
	Window time.Duration
	Policy FailPolicy
}

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces quotas with Redis INCR counters that expire with the window.
type Limiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewLimiter returns a Limiter. Quotas are not enforced in the test,
// development and stress environments so local and load-test workflows are
// not throttled.
func NewLimiter(rdb *redis.Client, env string) *Limiter {
	switch env {
	case "", "test", "development", "stress":
		return &Limiter{rdb: rdb}
	}
	return &Limiter{rdb: rdb, enabled: true}
}

// Allow counts one call by caller against resource.
func (l *Limiter) Allow(ctx context.Context, resource, caller string, q Quota) (Decision, error) {
	if !l.enabled {
		return Decision{Allowed: true, Remaining: q.Limit}, nil
	}
	if l.rdb == nil {
		return Decision{}, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, caller)
	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	if cnt == 1 {
		l.rdb.Expire(ctx, key, q.Window)
	}
	if cnt <= int64(q.Limit) {
		return Decision{Allowed: true, Remaining: q.Limit - int(cnt)}, nil
	}

	retry, err := l.rdb.PTTL(ctx, key).Result()
	if err != nil || retry <= 0 {
		retry = q.Window
	}
	return Decision{RetryAfter: retry}, nil
}

// Route returns a Fiber handler enforcing q. Callers are keyed by the
// authenticated owner when AuthRequired ran first, otherwise by remote IP.
func (l *Limiter) Route(q Quota) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		caller := "ip:" + c.IP()
		if uid, ok := c.Locals(UserIDLocal).(uint); ok {
			caller = fmt.Sprintf("owner:%d", uid)
		}
		resource := q.Name
		if resource == "" {
			resource = c.Method() + ":" + c.Route().Path
		}

		d, err := l.Allow(ctx, resource, caller, q)
		if err != nil {
			observability.RedisErrorRate.WithLabelValues("rate_limit").Inc()
			if q.Policy == FailClosed {
				Logger.WarnContext(ctx, "rate limit fail-closed",
					slog.String("route", resource),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
					"code":  "RATE_LIMIT_UNAVAILABLE",
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
		if !d.Allowed {
			c.Set("X-RateLimit-Remaining", "0")
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int((d.RetryAfter+time.Second-1)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
				"code":  "RATE_LIMITED",
			})
		}
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		return c.Next()
	}
}
