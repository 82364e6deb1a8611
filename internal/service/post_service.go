package service

import (
	"context"
	"strings"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/generator"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/lifecycle"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/repository"

	"golang.org/x/sync/errgroup"
)

// MaxGenerateCount bounds how many drafts one generate request may ask for.
const MaxGenerateCount = 20

type PostService struct {
	postRepo  repository.PostRepository
	schedule  *ScheduleService
	generator generator.ContentGenerator
}

type CreatePostInput struct {
	OwnerID     uint   `validate:"required"`
	Content     string `validate:"required,max=280"`
	ScheduledAt *time.Time
}

type GeneratePostsInput struct {
	OwnerID uint   `validate:"required"`
	Topic   string `validate:"required,max=200"`
	Count   int    `validate:"min=1,max=20"`
	Tone    string `validate:"max=50"`
}

type ListPostsInput struct {
	OwnerID uint
	Status  string
	Limit   int
	Offset  int
}

type UpdatePostInput struct {
	OwnerID     uint `validate:"required"`
	PostID      uint `validate:"required"`
	Content     *string
	ScheduledAt *time.Time
}

type RegeneratePostInput struct {
	OwnerID uint   `validate:"required"`
	PostID  uint   `validate:"required"`
	Topic   string `validate:"max=200"`
	Tone    string `validate:"max=50"`
}

func NewPostService(
	postRepo repository.PostRepository,
	schedule *ScheduleService,
	gen generator.ContentGenerator,
) *PostService {
	return &PostService{
		postRepo:  postRepo,
		schedule:  schedule,
		generator: gen,
	}
}

// CreatePost creates a manual post, approved and scheduled. Without an
// explicit time it takes the owner's next free slot.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var at time.Time
	if in.ScheduledAt != nil {
		at = in.ScheduledAt.UTC()
	} else {
		times, err := s.schedule.NextSlots(ctx, in.OwnerID, 1)
		if err != nil {
			return nil, err
		}
		at = times[0]
	}

	post := lifecycle.NewManual(in.OwnerID, in.Content, at)
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// GeneratePosts drafts Count posts and queues them unapproved on the owner's
// next free slots. Nothing is stored unless every draft succeeds.
func (s *PostService) GeneratePosts(ctx context.Context, in GeneratePostsInput) ([]*models.Post, error) {
	in.Topic = strings.TrimSpace(in.Topic)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	drafts := make([]string, in.Count)
	g, gctx := errgroup.WithContext(ctx)
	for i := range drafts {
		g.Go(func() error {
			content, err := s.generator.Generate(gctx, generator.Input{Topic: in.Topic, Tone: in.Tone})
			if err != nil {
				return err
			}
			drafts[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	times, err := s.schedule.NextSlots(ctx, in.OwnerID, in.Count)
	if err != nil {
		return nil, err
	}

	posts := make([]*models.Post, in.Count)
	for i, content := range drafts {
		posts[i] = lifecycle.NewGenerated(in.OwnerID, content, times[i])
	}
	if err := s.postRepo.CreateBatch(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	filter := repository.PostFilter{}
	filter.Limit, filter.Offset = clampPage(in.Limit, in.Offset, 20, 100)
	if in.Status != "" {
		status, err := models.ParsePostStatus(in.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	return s.postRepo.ListByOwner(ctx, in.OwnerID, filter)
}

func (s *PostService) GetPost(ctx context.Context, ownerID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := authorize("post", post.OwnerID, ownerID); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Content == nil && in.ScheduledAt == nil {
		return nil, models.NewValidationError("content or scheduled_at is required")
	}
	if in.Content != nil {
		trimmed := strings.TrimSpace(*in.Content)
		if err := models.ValidatePostContent(trimmed); err != nil {
			return nil, err
		}
		in.Content = &trimmed
	}

	if _, err := s.GetPost(ctx, in.OwnerID, in.PostID); err != nil {
		return nil, err
	}
	if err := s.postRepo.Update(ctx, in.PostID, repository.PostUpdate{Content: in.Content, ScheduledAt: in.ScheduledAt}); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, in.PostID)
}

func (s *PostService) ApprovePost(ctx context.Context, ownerID, postID uint) (*models.Post, error) {
	return s.mutate(ctx, ownerID, postID, s.postRepo.Approve)
}

func (s *PostService) RetryPost(ctx context.Context, ownerID, postID uint) (*models.Post, error) {
	return s.mutate(ctx, ownerID, postID, s.postRepo.Retry)
}

// RegeneratePost replaces a post's content with a fresh draft and sends it
// back for approval.
func (s *PostService) RegeneratePost(ctx context.Context, in RegeneratePostInput) (*models.Post, error) {
	in.Topic = strings.TrimSpace(in.Topic)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	post, err := s.GetPost(ctx, in.OwnerID, in.PostID)
	if err != nil {
		return nil, err
	}
	// Fail before spending a model call on a post that cannot change.
	if _, err := lifecycle.Next(post.Status, lifecycle.EventRegenerate); err != nil {
		return nil, err
	}

	topic := in.Topic
	if topic == "" {
		topic = post.Content
	}
	content, err := s.generator.Generate(ctx, generator.Input{Topic: topic, Tone: in.Tone, Avoid: post.Content})
	if err != nil {
		return nil, err
	}
	if err := s.postRepo.Regenerate(ctx, post.ID, content); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) DeletePost(ctx context.Context, ownerID, postID uint) error {
	if _, err := s.GetPost(ctx, ownerID, postID); err != nil {
		return err
	}
	return s.postRepo.Delete(ctx, postID)
}

func (s *PostService) mutate(ctx context.Context, ownerID, postID uint, op func(context.Context, uint) error) (*models.Post, error) {
	if _, err := s.GetPost(ctx, ownerID, postID); err != nil {
		return nil, err
	}
	if err := op(ctx, postID); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, postID)
}
