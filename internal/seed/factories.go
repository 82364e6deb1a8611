// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/lifecycle"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var (
	slotChoices = []string{"07:30", "09:00", "12:15", "15:00", "18:00", "20:30", "22:00"}
	timezones   = []string{"UTC", "Asia/Tokyo", "Europe/Berlin", "America/New_York"}
	hashtags    = []string{"#golang", "#buildinpublic", "#devlife", "#startup", "#indiehackers", "#productivity"}
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	now  time.Time
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	// #nosec G404: acceptable for seeding
	return &Factory{
		db:     db,
		opts:   opts,
		rng:    rand.New(rand.NewSource(seed)),
		now:    time.Now().UTC(),
		nextID: 1000,
	}
}

// PostContent returns a short platform-sized post.
func (f *Factory) PostContent() string {
	content := fmt.Sprintf("%s %s", gofakeit.HipsterSentence(8), hashtags[f.rng.Intn(len(hashtags))])
	if r := []rune(content); len(r) > models.MaxPostContentLength {
		content = string(r[:models.MaxPostContentLength])
	}
	return content
}

// BuildSlotConfig picks two to four distinct slots and a timezone.
func (f *Factory) BuildSlotConfig(ownerID uint) *models.TimeSlotConfig {
	perm := f.rng.Perm(len(slotChoices))
	n := 2 + f.rng.Intn(3)
	picked := append([]int(nil), perm[:n]...)
	// slotChoices is sorted, so sorting indexes sorts times.
	sort.Ints(picked)
	slots := make(models.SlotList, n)
	for i, idx := range picked {
		slots[i] = slotChoices[idx]
	}
	return &models.TimeSlotConfig{
		OwnerID:  ownerID,
		Slots:    slots,
		Timezone: timezones[f.rng.Intn(len(timezones))],
	}
}

// BuildPost returns a post in the requested status with consistent fields.
func (f *Factory) BuildPost(ownerID uint, status models.PostStatus) *models.Post {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	past := f.now.Add(-time.Duration(1+f.rng.Intn(maxDays*24)) * time.Hour)
	future := f.now.Add(time.Duration(1+f.rng.Intn(7*24)) * time.Hour)

	switch status {
	case models.PostStatusUnapproved:
		return lifecycle.NewGenerated(ownerID, f.PostContent(), future)
	case models.PostStatusPosted:
		p := lifecycle.NewManual(ownerID, f.PostContent(), past)
		_ = lifecycle.Apply(p, lifecycle.EventDispatchSuccess, lifecycle.Effect{
			At:             past.Add(time.Duration(f.rng.Intn(120)) * time.Second),
			ExternalPostID: fmt.Sprintf("%d", gofakeit.Number(1_000_000_000, 2_000_000_000)),
		})
		return p
	case models.PostStatusFailed:
		p := lifecycle.NewManual(ownerID, f.PostContent(), past)
		_ = lifecycle.Apply(p, lifecycle.EventDispatchFailure, lifecycle.Effect{
			ErrorMessage: "platform rejected the post: " + gofakeit.Phrase(),
		})
		return p
	default:
		p := lifecycle.NewManual(ownerID, f.PostContent(), future)
		p.IsManual = f.rng.Intn(2) == 0
		return p
	}
}

// BuildSnapshots returns one snapshot per day over MaxDays with a noisy
// upward trend, oldest first.
func (f *Factory) BuildSnapshots(ownerID uint) []*models.FollowerSnapshot {
	days := f.opts.MaxDays
	if days <= 0 {
		days = 30
	}
	followers := int64(50 + f.rng.Intn(500))
	following := int64(100 + f.rng.Intn(300))
	out := make([]*models.FollowerSnapshot, 0, days)
	for d := days; d > 0; d-- {
		followers += int64(f.rng.Intn(25) - 5)
		if followers < 0 {
			followers = 0
		}
		fl := following
		out = append(out, &models.FollowerSnapshot{
			OwnerID:        ownerID,
			FollowerCount:  followers,
			FollowingCount: &fl,
			RecordedAt:     f.now.Add(-time.Duration(d) * 24 * time.Hour),
		})
	}
	return out
}

// create persists v unless running dry.
func (f *Factory) create(label string, v any, count int) error {
	if f.opts.DryRun {
		f.nextID += uint(count)
		log.Printf("[dry-run] %s: %d rows (no DB write)", label, count)
		return nil
	}
	return f.db.Create(v).Error
}
