package timeslot

import (
	"testing"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSlots(t *testing.T, raw ...string) []Slot {
	t.Helper()
	slots, err := Normalize(raw)
	require.NoError(t, err)
	return slots
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 1, day, hour, minute, 0, 0, time.UTC)
}

func TestAssign(t *testing.T) {
	s := NewScheduler(0)

	tests := []struct {
		name  string
		now   time.Time
		slots []string
		n     int
		want  []time.Time
	}{
		{
			name:  "remaining slots today then next day",
			now:   at(1, 10, 0),
			slots: []string{"09:00", "12:00", "18:00"},
			n:     4,
			want:  []time.Time{at(1, 12, 0), at(1, 18, 0), at(2, 9, 0), at(2, 12, 0)},
		},
		{
			name:  "afternoon wraps to the full next day",
			now:   at(1, 14, 5),
			slots: []string{"09:00", "12:00", "18:00"},
			n:     4,
			want:  []time.Time{at(1, 18, 0), at(2, 9, 0), at(2, 12, 0), at(2, 18, 0)},
		},
		{
			name:  "slot equal to now is excluded",
			now:   at(1, 12, 0),
			slots: []string{"09:00", "12:00", "18:00"},
			n:     2,
			want:  []time.Time{at(1, 18, 0), at(2, 9, 0)},
		},
		{
			name:  "all slots passed today",
			now:   at(1, 23, 0),
			slots: []string{"09:00", "18:00"},
			n:     3,
			want:  []time.Time{at(2, 9, 0), at(2, 18, 0), at(3, 9, 0)},
		},
		{
			name:  "single slot spans days",
			now:   at(1, 8, 0),
			slots: []string{"08:30"},
			n:     3,
			want:  []time.Time{at(1, 8, 30), at(2, 8, 30), at(3, 8, 30)},
		},
		{
			name:  "empty slots fall back to hourly",
			now:   at(1, 10, 15),
			slots: nil,
			n:     3,
			want:  []time.Time{at(1, 11, 15), at(1, 12, 15), at(1, 13, 15)},
		},
		{
			name:  "unsorted duplicate input is normalized",
			now:   at(1, 0, 0),
			slots: []string{"18:00", "09:00", "18:00"},
			n:     3,
			want:  []time.Time{at(1, 9, 0), at(1, 18, 0), at(2, 9, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Slots: mustSlots(t, tt.slots...), Location: time.UTC}
			got := s.Assign(tt.now, cfg, tt.n)
			require.Len(t, got, tt.n)
			for i := range tt.want {
				assert.True(t, tt.want[i].Equal(got[i]), "index %d: want %s got %s", i, tt.want[i], got[i])
			}
		})
	}
}

func TestAssignNonPositiveCount(t *testing.T) {
	s := NewScheduler(0)
	cfg := Config{Slots: mustSlots(t, "09:00")}
	assert.Empty(t, s.Assign(at(1, 0, 0), cfg, 0))
	assert.Empty(t, s.Assign(at(1, 0, 0), cfg, -3))
}

func TestAssignCustomFallback(t *testing.T) {
	s := NewScheduler(30 * time.Minute)
	got := s.Assign(at(1, 10, 0), Config{}, 2)
	require.Len(t, got, 2)
	assert.True(t, at(1, 10, 30).Equal(got[0]))
	assert.True(t, at(1, 11, 0).Equal(got[1]))
}

func TestAssignInvariants(t *testing.T) {
	s := NewScheduler(0)
	slotSets := [][]string{
		{"00:00"},
		{"06:00", "06:01"},
		{"09:00", "12:00", "18:00", "23:59"},
		{},
	}
	start := at(1, 0, 0)

	for _, raw := range slotSets {
		cfg := Config{Slots: mustSlots(t, raw...), Location: time.UTC}
		for step := 0; step < 48*4; step++ {
			now := start.Add(time.Duration(step) * 15 * time.Minute)
			for _, n := range []int{1, 2, 5, 11} {
				got := s.Assign(now, cfg, n)
				require.Len(t, got, n)

				prev := now
				prevIdx := -1
				for i, ts := range got {
					assert.True(t, ts.After(prev), "slots=%v now=%s n=%d index %d not increasing", raw, now, n, i)

					if len(cfg.Slots) == 0 {
						assert.Equal(t, time.Duration(i+1)*DefaultFallbackInterval, ts.Sub(now), "fallback index %d", i)
						prev = ts
						continue
					}
					idx := slotIndex(cfg.Slots, ts)
					require.GreaterOrEqual(t, idx, 0, "slots=%v: %s is not a configured slot", raw, ts)
					assert.LessOrEqual(t, ts.Sub(prev), 24*time.Hour, "slots=%v now=%s index %d leaves a gap", raw, now, i)
					if prevIdx >= 0 {
						assert.Equal(t, (prevIdx+1)%len(cfg.Slots), idx, "slots=%v now=%s index %d skips or repeats a slot", raw, now, i)
					}
					prev, prevIdx = ts, idx
				}
				assert.Equal(t, got, s.Assign(now, cfg, n), "assignment must be deterministic")
			}
		}
	}
}

func slotIndex(slots []Slot, ts time.Time) int {
	for i, sl := range slots {
		if ts.Hour() == sl.Hour && ts.Minute() == sl.Minute && ts.Second() == 0 {
			return i
		}
	}
	return -1
}

func TestAssignTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	s := NewScheduler(0)
	cfg := Config{Slots: mustSlots(t, "09:00", "21:00"), Location: tokyo}

	// 2026-01-01 00:30 UTC is 09:30 in Tokyo.
	got := s.Assign(at(1, 0, 30), cfg, 2)
	require.Len(t, got, 2)
	assert.True(t, at(1, 12, 0).Equal(got[0]))
	assert.True(t, at(2, 0, 0).Equal(got[1]))
}

func TestAssignDSTGap(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	s := NewScheduler(0)
	cfg := Config{Slots: mustSlots(t, "02:30", "03:00"), Location: ny}

	// Clocks jump from 02:00 to 03:00 on 2026-03-08.
	now := time.Date(2026, 3, 8, 0, 0, 0, 0, ny)
	got := s.Assign(now, cfg, 4)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].After(got[i-1]))
	}
}

func TestParseSlot(t *testing.T) {
	valid := map[string]Slot{
		"00:00": {0, 0},
		"09:05": {9, 5},
		"23:59": {23, 59},
	}
	for raw, want := range valid {
		got, err := ParseSlot(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
		assert.Equal(t, raw, got.String())
	}

	for _, raw := range []string{"", "9:00", "24:00", "12:60", "ab:cd", "12-00", "12:000"} {
		_, err := ParseSlot(raw)
		require.Error(t, err, raw)
		assert.True(t, models.IsCode(err, models.CodeValidation))
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg, err := ConfigFromModel(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Slots)
	assert.Equal(t, time.UTC, cfg.Location)

	cfg, err = ConfigFromModel(&models.TimeSlotConfig{Slots: models.SlotList{"18:00", "07:30"}, Timezone: "Asia/Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"07:30", "18:00"}, Strings(cfg.Slots))
	assert.Equal(t, "Asia/Tokyo", cfg.Location.String())

	_, err = ConfigFromModel(&models.TimeSlotConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}
