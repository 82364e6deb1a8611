package bootstrap

import (
	"fmt"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/cache"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/config"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/credential"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/generator"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/jobs"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/notifications"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/publisher"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/repository"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/service"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/timeslot"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Components is the assembled application graph shared by the API server
// and the scheduler process.
type Components struct {
	Posts       repository.PostRepository
	Snapshots   repository.FollowerSnapshotRepository
	Slots       repository.TimeSlotRepository
	Credentials repository.CredentialRepository

	CredentialStore *credential.Store
	Publisher       publisher.Publisher
	Generator       generator.ContentGenerator
	Notifier        *notifications.Notifier

	Dispatch  *jobs.DispatchExecutor
	Followers *jobs.FollowerStatsRecorder

	PostService     *service.PostService
	ScheduleService *service.ScheduleService
	AccountService  *service.AccountService
	StatsService    *service.StatsService
}

// Overrides replaces external clients, mainly for tests.
type Overrides struct {
	Publisher publisher.Publisher
	Generator generator.ContentGenerator
}

// BuildComponents wires every component from cfg. rdb may be nil.
func BuildComponents(cfg *config.Config, db *gorm.DB, rdb *redis.Client, ov Overrides) (*Components, error) {
	key, err := cfg.CredentialKey()
	if err != nil {
		return nil, err
	}
	cipher, err := credential.NewCipher(key)
	if err != nil {
		return nil, err
	}

	c := &Components{
		Posts:       repository.NewPostRepository(db),
		Snapshots:   repository.NewFollowerSnapshotRepository(db),
		Slots:       repository.NewTimeSlotRepository(db),
		Credentials: repository.NewCredentialRepository(db),
		Notifier:    notifications.NewNotifier(rdb),
	}
	c.CredentialStore = credential.NewStore(c.Credentials, cipher)

	c.Publisher = ov.Publisher
	if c.Publisher == nil {
		c.Publisher = publisher.NewClient(publisher.Config{
			BaseURL:       cfg.PublisherBaseURL,
			Timeout:       cfg.PublisherTimeout(),
			RatePerSecond: cfg.PublisherRatePerSecond,
		})
	}

	c.Generator = ov.Generator
	if c.Generator == nil {
		c.Generator, err = generator.NewOpenAICompatible(cfg.LLMURL, cfg.LLMAPIKey, generator.Options{
			Model:          cfg.LLMModel,
			Temperature:    cfg.LLMTemperature,
			MaxConcurrency: int64(cfg.LLMMaxConcurrency),
		})
		if err != nil {
			return nil, fmt.Errorf("content generator: %w", err)
		}
	}

	dispatchOpts := []jobs.DispatchOption{jobs.WithDispatchEvents(c.Notifier)}
	if cfg.DispatchLeaseEnabled && rdb != nil {
		dispatchOpts = append(dispatchOpts, jobs.WithLeaser(cache.NewLeaser(rdb)))
	}
	c.Dispatch = jobs.NewDispatchExecutor(c.Posts, c.CredentialStore, c.Publisher, jobs.DispatchConfig{
		BatchSize:   cfg.DispatchBatchSize,
		Concurrency: cfg.DispatchConcurrency,
		ItemTimeout: cfg.PublisherTimeout(),
		LeaseTTL:    cfg.DispatchLeaseTTL(),
	}, dispatchOpts...)

	c.Followers = jobs.NewFollowerStatsRecorder(c.CredentialStore, c.CredentialStore, c.Publisher, c.Snapshots, jobs.FollowerConfig{
		Concurrency: cfg.FollowerConcurrency,
		ItemTimeout: cfg.PublisherTimeout(),
		MinInterval: cfg.FollowerSnapshotMinInterval(),
	}, jobs.WithFollowerEvents(c.Notifier))

	c.ScheduleService = service.NewScheduleService(c.Slots, c.Posts, timeslot.NewScheduler(cfg.SchedulerFallbackInterval()))
	c.PostService = service.NewPostService(c.Posts, c.ScheduleService, c.Generator)
	c.AccountService = service.NewAccountService(c.CredentialStore)
	c.StatsService = service.NewStatsService(c.Snapshots)

	return c, nil
}
