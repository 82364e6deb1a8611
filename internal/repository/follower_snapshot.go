package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/cache"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"gorm.io/gorm"
)

// FollowerSnapshotRepository defines the interface for follower history.
// Snapshots are append-only; there is no update or delete.
type FollowerSnapshotRepository interface {
	Append(ctx context.Context, snap *models.FollowerSnapshot) error
	ListByOwner(ctx context.Context, ownerID uint, since *time.Time, limit int) ([]*models.FollowerSnapshot, error)
	Latest(ctx context.Context, ownerID uint) (*models.FollowerSnapshot, error)
}

type followerSnapshotRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewFollowerSnapshotRepository creates a new follower snapshot repository
func NewFollowerSnapshotRepository(db *gorm.DB) FollowerSnapshotRepository {
	return &followerSnapshotRepository{db: db, logger: observability.NewRepoLogger("follower_snapshots")}
}

func (r *followerSnapshotRepository) Append(ctx context.Context, snap *models.FollowerSnapshot) error {
	if snap.FollowerCount < 0 || (snap.FollowingCount != nil && *snap.FollowingCount < 0) {
		return models.NewValidationError("follower counts must be non-negative")
	}
	snap.RecordedAt = snap.RecordedAt.UTC()

	defer observability.TrackQuery("append", "follower_snapshots")()
	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		r.logger.LogError(ctx, err, "append")
		return wrapDB(err)
	}
	cache.InvalidateLatestSnapshot(ctx, snap.OwnerID)
	r.logger.LogCreate(ctx, map[string]interface{}{"owner_id": snap.OwnerID, "follower_count": snap.FollowerCount})
	return nil
}

// ListByOwner returns the owner's most recent snapshots, at most limit of
// them and none older than since, in recording order.
func (r *followerSnapshotRepository) ListByOwner(ctx context.Context, ownerID uint, since *time.Time, limit int) ([]*models.FollowerSnapshot, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if since != nil {
		q = q.Where("recorded_at >= ?", since.UTC())
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	defer observability.TrackQuery("list_by_owner", "follower_snapshots")()
	var snaps []*models.FollowerSnapshot
	if err := q.Order("recorded_at DESC, id DESC").Find(&snaps).Error; err != nil {
		return nil, wrapDB(err)
	}
	slices.Reverse(snaps)
	return snaps, nil
}

func (r *followerSnapshotRepository) Latest(ctx context.Context, ownerID uint) (*models.FollowerSnapshot, error) {
	var snap models.FollowerSnapshot
	err := cache.Aside(ctx, cache.LatestSnapshotKey(ownerID), &snap, cache.LatestSnapshotTTL, func() error {
		return r.db.WithContext(ctx).
			Where("owner_id = ?", ownerID).
			Order("recorded_at DESC, id DESC").
			First(&snap).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("FollowerSnapshot", ownerID)
	}
	if err != nil {
		return nil, wrapDB(err)
	}
	return &snap, nil
}
