package service

import (
	"context"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/repository"
)

// StatsService reads follower history.
type StatsService struct {
	snapshotRepo repository.FollowerSnapshotRepository
}

func NewStatsService(snapshotRepo repository.FollowerSnapshotRepository) *StatsService {
	return &StatsService{snapshotRepo: snapshotRepo}
}

// History returns the most recent snapshots, oldest first.
func (s *StatsService) History(ctx context.Context, ownerID uint, since *time.Time, limit int) ([]*models.FollowerSnapshot, error) {
	limit, _ = clampPage(limit, 0, 100, 1000)
	snaps, err := s.snapshotRepo.ListByOwner(ctx, ownerID, since, limit)
	if err != nil {
		return nil, err
	}
	if snaps == nil {
		snaps = []*models.FollowerSnapshot{}
	}
	return snaps, nil
}

func (s *StatsService) Latest(ctx context.Context, ownerID uint) (*models.FollowerSnapshot, error) {
	return s.snapshotRepo.Latest(ctx, ownerID)
}
