// Package timeslot assigns publication times from an owner's daily slot configuration.
package timeslot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
)

// Slot is a wall-clock time of day.
type Slot struct {
	Hour   int
	Minute int
}

// ParseSlot parses an "HH:MM" value in 24-hour form.
func ParseSlot(raw string) (Slot, error) {
	raw = strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return Slot{}, models.NewValidationError(fmt.Sprintf("invalid time slot %q, expected HH:MM", raw))
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Slot{}, models.NewValidationError(fmt.Sprintf("invalid hour in time slot %q", raw))
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Slot{}, models.NewValidationError(fmt.Sprintf("invalid minute in time slot %q", raw))
	}
	return Slot{Hour: h, Minute: m}, nil
}

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

func (s Slot) minutes() int {
	return s.Hour*60 + s.Minute
}

// Normalize parses raw slots and returns them sorted ascending without duplicates.
func Normalize(raw []string) ([]Slot, error) {
	seen := make(map[int]struct{}, len(raw))
	out := make([]Slot, 0, len(raw))
	for _, r := range raw {
		s, err := ParseSlot(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s.minutes()]; dup {
			continue
		}
		seen[s.minutes()] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].minutes() < out[j].minutes() })
	return out, nil
}

// Strings renders slots in their stored form.
func Strings(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}
