package seed

import (
	"context"
	"fmt"
	"log"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/credential"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	// Owners is the number of owner accounts to populate.
	Owners int
	// PostsPerOwner is spread over every post status.
	PostsPerOwner int
	MaxDays       int
	DryRun        bool
	RandSeed      int64
	// Credentials, when set, stores a demo platform credential per owner.
	Credentials *credential.Store
}

// Result counts what a run created.
type Result struct {
	Owners      int
	Posts       int
	Snapshots   int
	Credentials int
}

// Seeder populates demo data through a Factory.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.Owners <= 0 {
		opts.Owners = 5
	}
	if opts.PostsPerOwner <= 0 {
		opts.PostsPerOwner = 12
	}
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// ClearAll removes every seeded table's rows.
func (s *Seeder) ClearAll() error {
	if s.opts.DryRun {
		return nil
	}
	all := s.db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.Post{}, &models.FollowerSnapshot{}, &models.TimeSlotConfig{}, &models.PlatformCredential{}} {
		if err := all.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	log.Println("🧹 existing data cleared")
	return nil
}

// Run seeds owners 1..Owners with slots, posts in every status and a
// follower history.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	statuses := models.PostStatuses
	res := &Result{}

	for i := 1; i <= s.opts.Owners; i++ {
		ownerID := uint(i)

		cfg := s.factory.BuildSlotConfig(ownerID)
		if err := s.factory.create("time slots", cfg, 1); err != nil {
			return res, fmt.Errorf("owner %d slots: %w", ownerID, err)
		}

		posts := make([]*models.Post, 0, s.opts.PostsPerOwner)
		for n := 0; n < s.opts.PostsPerOwner; n++ {
			posts = append(posts, s.factory.BuildPost(ownerID, statuses[n%len(statuses)]))
		}
		if err := s.factory.create("posts", &posts, len(posts)); err != nil {
			return res, fmt.Errorf("owner %d posts: %w", ownerID, err)
		}
		res.Posts += len(posts)

		snaps := s.factory.BuildSnapshots(ownerID)
		if err := s.factory.create("snapshots", &snaps, len(snaps)); err != nil {
			return res, fmt.Errorf("owner %d snapshots: %w", ownerID, err)
		}
		res.Snapshots += len(snaps)

		if s.opts.Credentials != nil && !s.opts.DryRun {
			if _, err := s.opts.Credentials.Save(ctx, credential.SaveInput{
				OwnerID:     ownerID,
				AccountID:   gofakeit.Username(),
				AccessToken: "demo-" + gofakeit.UUID(),
			}); err != nil {
				return res, fmt.Errorf("owner %d credential: %w", ownerID, err)
			}
			res.Credentials++
		}
		res.Owners++
	}

	log.Printf("✓ seeded %d owners, %d posts, %d snapshots, %d credentials",
		res.Owners, res.Posts, res.Snapshots, res.Credentials)
	return res, nil
}
