package service

import (
	"context"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/generator"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/repository"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/timeslot"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post) error
	createBatchFn   func(context.Context, []*models.Post) error
	getByIDFn       func(context.Context, uint) (*models.Post, error)
	listByOwnerFn   func(context.Context, uint, repository.PostFilter) ([]*models.Post, error)
	latestPendingFn func(context.Context, uint) (*time.Time, error)
	updateFn        func(context.Context, uint, repository.PostUpdate) error
	deleteFn        func(context.Context, uint) error
	approveFn       func(context.Context, uint) error
	retryFn         func(context.Context, uint) error
	regenerateFn    func(context.Context, uint, string) error
	listDueFn       func(context.Context, time.Time, int) ([]*models.Post, error)
	markPostedFn    func(context.Context, uint, string, time.Time) error
	markFailedFn    func(context.Context, uint, string) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) CreateBatch(ctx context.Context, posts []*models.Post) error {
	return s.createBatchFn(ctx, posts)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) ListByOwner(ctx context.Context, ownerID uint, filter repository.PostFilter) ([]*models.Post, error) {
	return s.listByOwnerFn(ctx, ownerID, filter)
}
func (s *postRepoStub) LatestPendingScheduledAt(ctx context.Context, ownerID uint) (*time.Time, error) {
	return s.latestPendingFn(ctx, ownerID)
}
func (s *postRepoStub) Update(ctx context.Context, id uint, upd repository.PostUpdate) error {
	return s.updateFn(ctx, id, upd)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) Approve(ctx context.Context, id uint) error {
	return s.approveFn(ctx, id)
}
func (s *postRepoStub) Retry(ctx context.Context, id uint) error {
	return s.retryFn(ctx, id)
}
func (s *postRepoStub) Regenerate(ctx context.Context, id uint, content string) error {
	return s.regenerateFn(ctx, id, content)
}
func (s *postRepoStub) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	return s.listDueFn(ctx, now, limit)
}
func (s *postRepoStub) MarkPosted(ctx context.Context, id uint, externalID string, postedAt time.Time) error {
	return s.markPostedFn(ctx, id, externalID, postedAt)
}
func (s *postRepoStub) MarkFailed(ctx context.Context, id uint, message string) error {
	return s.markFailedFn(ctx, id, message)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:      func(_ context.Context, _ *models.Post) error { return nil },
		createBatchFn: func(_ context.Context, _ []*models.Post) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, OwnerID: 1, Status: models.PostStatusScheduled}, nil
		},
		listByOwnerFn:   func(_ context.Context, _ uint, _ repository.PostFilter) ([]*models.Post, error) { return nil, nil },
		latestPendingFn: func(_ context.Context, _ uint) (*time.Time, error) { return nil, nil },
		updateFn:        func(_ context.Context, _ uint, _ repository.PostUpdate) error { return nil },
		deleteFn:        func(_ context.Context, _ uint) error { return nil },
		approveFn:       func(_ context.Context, _ uint) error { return nil },
		retryFn:         func(_ context.Context, _ uint) error { return nil },
		regenerateFn:    func(_ context.Context, _ uint, _ string) error { return nil },
		listDueFn:       func(_ context.Context, _ time.Time, _ int) ([]*models.Post, error) { return nil, nil },
		markPostedFn:    func(_ context.Context, _ uint, _ string, _ time.Time) error { return nil },
		markFailedFn:    func(_ context.Context, _ uint, _ string) error { return nil },
	}
}

// slotRepoStub is a stub for repository.TimeSlotRepository.
type slotRepoStub struct {
	getFn    func(context.Context, uint) (*models.TimeSlotConfig, error)
	upsertFn func(context.Context, *models.TimeSlotConfig) error
}

func (s *slotRepoStub) Get(ctx context.Context, ownerID uint) (*models.TimeSlotConfig, error) {
	return s.getFn(ctx, ownerID)
}
func (s *slotRepoStub) Upsert(ctx context.Context, cfg *models.TimeSlotConfig) error {
	return s.upsertFn(ctx, cfg)
}

func slotsFor(slots ...string) *slotRepoStub {
	return &slotRepoStub{
		getFn: func(_ context.Context, ownerID uint) (*models.TimeSlotConfig, error) {
			if len(slots) == 0 {
				return nil, nil
			}
			return &models.TimeSlotConfig{OwnerID: ownerID, Slots: slots, Timezone: "UTC"}, nil
		},
		upsertFn: func(_ context.Context, _ *models.TimeSlotConfig) error { return nil },
	}
}

type generatorStub struct {
	generateFn func(context.Context, generator.Input) (string, error)
}

func (g *generatorStub) Generate(ctx context.Context, in generator.Input) (string, error) {
	return g.generateFn(ctx, in)
}

var serviceNow = time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)

func newScheduleService(posts repository.PostRepository, slots repository.TimeSlotRepository) *ScheduleService {
	s := NewScheduleService(slots, posts, timeslot.NewScheduler(timeslot.DefaultFallbackInterval))
	s.now = func() time.Time { return serviceNow }
	return s
}
