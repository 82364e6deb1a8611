package repository

import (
	"context"
	"errors"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/cache"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TimeSlotRepository stores one slot configuration per owner.
type TimeSlotRepository interface {
	// Get returns nil without error when the owner has no configuration.
	Get(ctx context.Context, ownerID uint) (*models.TimeSlotConfig, error)
	Upsert(ctx context.Context, cfg *models.TimeSlotConfig) error
}

type timeSlotRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewTimeSlotRepository creates a new time slot repository
func NewTimeSlotRepository(db *gorm.DB) TimeSlotRepository {
	return &timeSlotRepository{db: db, logger: observability.NewRepoLogger("time_slot_configs")}
}

func (r *timeSlotRepository) Get(ctx context.Context, ownerID uint) (*models.TimeSlotConfig, error) {
	var cfg models.TimeSlotConfig
	err := cache.Aside(ctx, cache.SlotConfigKey(ownerID), &cfg, cache.SlotConfigTTL, func() error {
		return r.db.WithContext(ctx).First(&cfg, "owner_id = ?", ownerID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDB(err)
	}
	return &cfg, nil
}

func (r *timeSlotRepository) Upsert(ctx context.Context, cfg *models.TimeSlotConfig) error {
	if cfg.Timezone == "" {
		cfg.Timezone = models.DefaultTimezone
	}
	if cfg.Slots == nil {
		cfg.Slots = models.SlotList{}
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"slots", "timezone", "updated_at"}),
	}).Create(cfg).Error
	if err != nil {
		r.logger.LogError(ctx, err, "upsert")
		return wrapDB(err)
	}
	cache.InvalidateSlotConfig(ctx, cfg.OwnerID)
	r.logger.LogUpdate(ctx, map[string]interface{}{"owner_id": cfg.OwnerID, "slots": len(cfg.Slots)})
	return nil
}
