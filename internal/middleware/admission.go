package middleware

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
)

// AdmissionState is whether the process takes new requests.
type AdmissionState int32

const (
	// Accepting admits every request.
	Accepting AdmissionState = iota
	// Draining rejects new requests while in-flight work finishes.
	Draining
)

func (s AdmissionState) String() string {
	switch s {
	case Accepting:
		return "accepting"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}

// AdmissionController gates new requests during shutdown. One controller is
// owned by the server and handed to the request path.
type AdmissionController struct {
	state      atomic.Int32
	retryAfter time.Duration
	exempt     map[string]struct{}
}

// NewAdmissionController returns a controller in the Accepting state. Paths in
// exempt stay reachable while draining.
func NewAdmissionController(retryAfter time.Duration, exempt ...string) *AdmissionController {
	a := &AdmissionController{
		retryAfter: retryAfter,
		exempt:     make(map[string]struct{}, len(exempt)),
	}
	for _, p := range exempt {
		a.exempt[p] = struct{}{}
	}
	return a
}

// State returns the current admission state.
func (a *AdmissionController) State() AdmissionState {
	return AdmissionState(a.state.Load())
}

// Drain switches to Draining. It reports whether this call changed the state.
func (a *AdmissionController) Drain() bool {
	return a.state.CompareAndSwap(int32(Accepting), int32(Draining))
}

// Middleware rejects requests with 503 once the controller is draining.
func (a *AdmissionController) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if a.State() == Accepting {
			return c.Next()
		}
		if _, ok := a.exempt[c.Path()]; ok {
			return c.Next()
		}
		if a.retryAfter > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(a.retryAfter.Seconds())))
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Server is shutting down",
			"code":  "SERVICE_DRAINING",
		})
	}
}
