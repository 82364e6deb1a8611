package server

import (
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePostRequest is the body of POST /api/posts.
type CreatePostRequest struct {
	Content     string     `json:"content"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// GeneratePostsRequest is the body of POST /api/posts/generate.
type GeneratePostsRequest struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
	Tone  string `json:"tone,omitempty"`
}

// UpdatePostRequest is the body of PUT /api/posts/:id.
type UpdatePostRequest struct {
	Content     *string    `json:"content,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// RegeneratePostRequest is the body of POST /api/posts/:id/regenerate.
type RegeneratePostRequest struct {
	Topic string `json:"topic,omitempty"`
	Tone  string `json:"tone,omitempty"`
}

// CreatePost godoc
// @Summary Create a manual post
// @Description Creates an approved post. Without scheduled_at the next free slot is used.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body CreatePostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req CreatePostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		OwnerID:     ownerID(c),
		Content:     req.Content,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GeneratePosts godoc
// @Summary Generate draft posts
// @Description Generates count drafts for a topic and assigns them to upcoming slots, unapproved.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body GeneratePostsRequest true "Generation request"
// @Success 201 {array} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/generate [post]
func (s *Server) GeneratePosts(c *fiber.Ctx) error {
	var req GeneratePostsRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	posts, err := s.postService.GeneratePosts(c.UserContext(), service.GeneratePostsInput{
		OwnerID: ownerID(c),
		Topic:   req.Topic,
		Count:   req.Count,
		Tone:    req.Tone,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(posts)
}

// ListPosts godoc
// @Summary List own posts
// @Tags posts
// @Produce json
// @Param status query string false "scheduled, posted or failed"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Post
// @Security BearerAuth
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		OwnerID: ownerID(c),
		Status:  c.Query("status"),
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(posts)
}

// GetPost godoc
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), ownerID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// UpdatePost godoc
// @Summary Edit a post
// @Description Changes content and/or scheduled_at. Posted posts cannot be edited.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body UpdatePostRequest true "Changes"
// @Success 200 {object} models.Post
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req UpdatePostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		OwnerID:     ownerID(c),
		PostID:      id,
		Content:     req.Content,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// ApprovePost godoc
// @Summary Approve a post for dispatch
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/approve [post]
func (s *Server) ApprovePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.ApprovePost(c.UserContext(), ownerID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// RetryPost godoc
// @Summary Reschedule a failed post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/retry [post]
func (s *Server) RetryPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.RetryPost(c.UserContext(), ownerID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// RegeneratePost godoc
// @Summary Replace a post's content with a new draft
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body RegeneratePostRequest false "Optional topic and tone"
// @Success 200 {object} models.Post
// @Failure 409 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/regenerate [post]
func (s *Server) RegeneratePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req RegeneratePostRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	post, err := s.postService.RegeneratePost(c.UserContext(), service.RegeneratePostInput{
		OwnerID: ownerID(c),
		PostID:  id,
		Topic:   req.Topic,
		Tone:    req.Tone,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

// DeletePost godoc
// @Summary Delete a post
// @Tags posts
// @Param id path int true "Post ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), ownerID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
