// Package featureflags evaluates per-owner feature rollouts from configuration.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Flag names a gated feature.
type Flag string

const (
	// ContentGeneration gates LLM drafting and regeneration.
	ContentGeneration Flag = "content_generation"
)

// defaults apply to flags absent from the configuration.
var defaults = map[Flag]bool{
	ContentGeneration: true,
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "content_generation=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
// Malformed pairs are ignored.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for an owner.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic owner rollout, e.g. 25%)
// Unknown values disable the flag; unconfigured flags use their default.
func (m *Manager) Enabled(flag Flag, ownerID uint) bool {
	if m == nil {
		return defaults[flag]
	}
	value, ok := m.flags[normalize(string(flag))]
	if !ok {
		return defaults[flag]
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 || ownerID == 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	return rolloutBucket(flag, ownerID) < pct
}

// Snapshot returns evaluated status of every known flag for one owner.
func (m *Manager) Snapshot(ownerID uint) map[Flag]bool {
	out := make(map[Flag]bool, len(defaults))
	for flag := range defaults {
		out[flag] = m.Enabled(flag, ownerID)
	}
	return out
}

// Require rejects requests with 403 when flag is off for the caller. ownerID
// extracts the authenticated owner from the request.
func (m *Manager) Require(flag Flag, ownerID func(*fiber.Ctx) uint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.Enabled(flag, ownerID(c)) {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": fmt.Sprintf("Feature %s is not enabled for this account", flag),
			"code":  "FEATURE_DISABLED",
		})
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(flag Flag, ownerID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(string(flag)), ownerID)))
	return int(h.Sum32() % 100)
}
