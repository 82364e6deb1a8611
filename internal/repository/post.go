// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/lifecycle"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"gorm.io/gorm"
)

// maxErrorMessageLength bounds stored dispatch failure messages, in runes.
const maxErrorMessageLength = 1000

// PostFilter narrows an owner's post listing.
type PostFilter struct {
	Status *models.PostStatus
	Limit  int
	Offset int
}

// PostUpdate holds the editable fields of a post. Nil fields are left unchanged.
type PostUpdate struct {
	Content     *string
	ScheduledAt *time.Time
}

// PostRepository defines the interface for post data operations. Every
// status change is a single guarded UPDATE that only matches rows in a
// status the transition allows.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	CreateBatch(ctx context.Context, posts []*models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListByOwner(ctx context.Context, ownerID uint, filter PostFilter) ([]*models.Post, error)
	LatestPendingScheduledAt(ctx context.Context, ownerID uint) (*time.Time, error)
	Update(ctx context.Context, id uint, upd PostUpdate) error
	Delete(ctx context.Context, id uint) error
	Approve(ctx context.Context, id uint) error
	Retry(ctx context.Context, id uint) error
	Regenerate(ctx context.Context, id uint, content string) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	MarkPosted(ctx context.Context, id uint, externalID string, postedAt time.Time) error
	MarkFailed(ctx context.Context, id uint, message string) error
}

// postRepository implements PostRepository
type postRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, logger: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if !post.Status.Valid() {
		return models.NewValidationError(fmt.Sprintf("unknown post status %q", post.Status))
	}
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return wrapDB(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"post_id": post.ID, "owner_id": post.OwnerID, "status": post.Status})
	return nil
}

func (r *postRepository) CreateBatch(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&posts).Error; err != nil {
		return wrapDB(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"owner_id": posts[0].OwnerID, "count": len(posts)})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, wrapLookup(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) ListByOwner(ctx context.Context, ownerID uint, filter PostFilter) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var posts []*models.Post
	if err := q.Order("scheduled_at ASC, id ASC").Find(&posts).Error; err != nil {
		return nil, wrapDB(err)
	}
	return posts, nil
}

// LatestPendingScheduledAt returns the latest scheduled_at among the owner's
// posts that have not been published or failed, or nil when there are none.
func (r *postRepository) LatestPendingScheduledAt(ctx context.Context, ownerID uint) (*time.Time, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Select("id", "scheduled_at").
		Where("owner_id = ? AND status IN ?", ownerID, []models.PostStatus{models.PostStatusUnapproved, models.PostStatusScheduled}).
		Order("scheduled_at DESC").
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDB(err)
	}
	at := post.ScheduledAt
	return &at, nil
}

func (r *postRepository) Update(ctx context.Context, id uint, upd PostUpdate) error {
	updates := map[string]interface{}{}
	if upd.Content != nil {
		updates["content"] = *upd.Content
	}
	if upd.ScheduledAt != nil {
		updates["scheduled_at"] = upd.ScheduledAt.UTC()
	}
	if len(updates) == 0 {
		return nil
	}
	return r.transition(ctx, id, lifecycle.EventEdit, updates)
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return wrapDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"post_id": id})
	return nil
}

func (r *postRepository) Approve(ctx context.Context, id uint) error {
	return r.transition(ctx, id, lifecycle.EventApprove, map[string]interface{}{
		"status":      models.PostStatusScheduled,
		"is_approved": true,
	})
}

func (r *postRepository) Retry(ctx context.Context, id uint) error {
	return r.transition(ctx, id, lifecycle.EventRetry, map[string]interface{}{
		"status":        models.PostStatusScheduled,
		"error_message": nil,
	})
}

func (r *postRepository) Regenerate(ctx context.Context, id uint, content string) error {
	return r.transition(ctx, id, lifecycle.EventRegenerate, map[string]interface{}{
		"status":        models.PostStatusUnapproved,
		"content":       content,
		"is_approved":   false,
		"error_message": nil,
	})
}

// ListDue returns approved scheduled posts whose time has come, oldest first.
func (r *postRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "ListDue", "posts")
	defer span.End()
	defer observability.TrackQuery("list_due", "posts")()

	q := r.db.WithContext(ctx).
		Where("status = ? AND is_approved = ? AND scheduled_at <= ?", models.PostStatusScheduled, true, now.UTC()).
		Order("scheduled_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var posts []*models.Post
	if err := q.Find(&posts).Error; err != nil {
		span.RecordError(err)
		return nil, wrapDB(err)
	}
	return posts, nil
}

func (r *postRepository) MarkPosted(ctx context.Context, id uint, externalID string, postedAt time.Time) error {
	return r.transition(ctx, id, lifecycle.EventDispatchSuccess, map[string]interface{}{
		"status":           models.PostStatusPosted,
		"posted_at":        postedAt.UTC(),
		"external_post_id": externalID,
		"error_message":    nil,
	})
}

func (r *postRepository) MarkFailed(ctx context.Context, id uint, message string) error {
	return r.transition(ctx, id, lifecycle.EventDispatchFailure, map[string]interface{}{
		"status":        models.PostStatusFailed,
		"error_message": normalizeFailureMessage(message),
	})
}

// transition applies updates only if the row is in a status ev may leave.
// A miss is resolved into NotFound or Conflict by re-reading the row.
func (r *postRepository) transition(ctx context.Context, id uint, ev lifecycle.Event, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND status IN ?", id, lifecycle.Sources(ev)).
		Updates(updates)
	if res.Error != nil {
		r.logger.LogError(ctx, res.Error, string(ev))
		return wrapDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.explainMiss(ctx, id, ev)
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"post_id": id, "event": string(ev)})
	return nil
}

func (r *postRepository) explainMiss(ctx context.Context, id uint, ev lifecycle.Event) error {
	var current models.Post
	if err := r.db.WithContext(ctx).Select("id", "status").First(&current, id).Error; err != nil {
		return wrapLookup(err, "Post", id)
	}
	if _, err := lifecycle.Next(current.Status, ev); err != nil {
		return err
	}
	return models.NewConflictError(fmt.Sprintf("post %d changed concurrently", id))
}

func normalizeFailureMessage(message string) string {
	if message == "" {
		return "dispatch failed"
	}
	if utf8.RuneCountInString(message) <= maxErrorMessageLength {
		return message
	}
	runes := []rune(message)
	return string(runes[:maxErrorMessageLength])
}
