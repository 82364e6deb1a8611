package timeslot

import (
	"fmt"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
)

// DefaultFallbackInterval spaces assignments when an owner has no slots configured.
const DefaultFallbackInterval = time.Hour

// Config is a resolved slot configuration.
type Config struct {
	Slots    []Slot
	Location *time.Location
}

// ConfigFromModel resolves a stored configuration. A nil model yields an empty
// UTC configuration.
func ConfigFromModel(m *models.TimeSlotConfig) (Config, error) {
	if m == nil {
		return Config{Location: time.UTC}, nil
	}
	slots, err := Normalize(m.Slots)
	if err != nil {
		return Config{}, err
	}
	loc, err := LoadLocation(m.Timezone)
	if err != nil {
		return Config{}, err
	}
	return Config{Slots: slots, Location: loc}, nil
}

// LoadLocation resolves an IANA zone name; empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("unknown timezone %q", name))
	}
	return loc, nil
}

// Scheduler turns slot configurations into concrete publication instants.
type Scheduler struct {
	fallback time.Duration
}

// NewScheduler returns a Scheduler. A non-positive fallback uses DefaultFallbackInterval.
func NewScheduler(fallback time.Duration) *Scheduler {
	if fallback <= 0 {
		fallback = DefaultFallbackInterval
	}
	return &Scheduler{fallback: fallback}
}

// Assign returns n strictly increasing instants after now. Today's slots later
// than now are used first, then every slot of each following day in order.
// A slot equal to now is skipped. Without slots, assignments are spaced by the
// fallback interval starting one interval after now. n <= 0 yields nil.
func (s *Scheduler) Assign(now time.Time, cfg Config, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)

	if len(cfg.Slots) == 0 {
		for i := 1; i <= n; i++ {
			out = append(out, now.Add(time.Duration(i)*s.fallback).UTC())
		}
		return out
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	last := now

	for day := 0; len(out) < n; day++ {
		for _, slot := range cfg.Slots {
			candidate := time.Date(y, m, d+day, slot.Hour, slot.Minute, 0, 0, loc)
			// DST transitions can fold a slot onto or before an earlier one.
			if !candidate.After(last) {
				continue
			}
			out = append(out, candidate.UTC())
			last = candidate
			if len(out) == n {
				break
			}
		}
	}
	return out
}
