package service

import (
	"context"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/repository"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/timeslot"
)

// MaxPreviewCount bounds schedule previews.
const MaxPreviewCount = 50

// ScheduleService manages owners' time slots and assigns publication times.
type ScheduleService struct {
	slotRepo  repository.TimeSlotRepository
	postRepo  repository.PostRepository
	scheduler *timeslot.Scheduler
	now       func() time.Time
}

type UpdateSlotsInput struct {
	OwnerID  uint     `validate:"required"`
	Slots    []string `validate:"max=48"`
	Timezone string   `validate:"max=64"`
}

func NewScheduleService(
	slotRepo repository.TimeSlotRepository,
	postRepo repository.PostRepository,
	scheduler *timeslot.Scheduler,
) *ScheduleService {
	return &ScheduleService{
		slotRepo:  slotRepo,
		postRepo:  postRepo,
		scheduler: scheduler,
		now:       time.Now,
	}
}

// GetSlots returns the owner's configuration, or an empty UTC one.
func (s *ScheduleService) GetSlots(ctx context.Context, ownerID uint) (*models.TimeSlotConfig, error) {
	cfg, err := s.slotRepo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return &models.TimeSlotConfig{OwnerID: ownerID, Slots: models.SlotList{}, Timezone: models.DefaultTimezone}, nil
	}
	return cfg, nil
}

// UpdateSlots validates, normalizes and stores the owner's slots.
func (s *ScheduleService) UpdateSlots(ctx context.Context, in UpdateSlotsInput) (*models.TimeSlotConfig, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	slots, err := timeslot.Normalize(in.Slots)
	if err != nil {
		return nil, err
	}
	tz := in.Timezone
	if tz == "" {
		tz = models.DefaultTimezone
	}
	if _, err := timeslot.LoadLocation(tz); err != nil {
		return nil, err
	}

	cfg := &models.TimeSlotConfig{
		OwnerID:  in.OwnerID,
		Slots:    models.SlotList(timeslot.Strings(slots)),
		Timezone: tz,
	}
	if err := s.slotRepo.Upsert(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Preview returns the next count assignments without persisting anything.
func (s *ScheduleService) Preview(ctx context.Context, ownerID uint, count int) ([]time.Time, error) {
	if count < 1 || count > MaxPreviewCount {
		return nil, models.NewValidationError("count must be between 1 and 50")
	}
	return s.NextSlots(ctx, ownerID, count)
}

// NextSlots assigns n publication times for new posts. Assignment starts
// after the owner's latest pending post so new posts queue behind it.
func (s *ScheduleService) NextSlots(ctx context.Context, ownerID uint, n int) ([]time.Time, error) {
	stored, err := s.slotRepo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	cfg, err := timeslot.ConfigFromModel(stored)
	if err != nil {
		return nil, err
	}

	anchor := s.now().UTC()
	latest, err := s.postRepo.LatestPendingScheduledAt(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.After(anchor) {
		anchor = *latest
	}
	return s.scheduler.Assign(anchor, cfg, n), nil
}
