// Package models contains data structures for the application's domain models.
package models

import (
	"time"
	"unicode/utf8"
)

// MaxPostContentLength is the platform limit on post text, counted in runes.
const MaxPostContentLength = 280

// Post is a unit of content scheduled for publication on an owner's account.
type Post struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OwnerID        uint       `gorm:"not null;index" json:"owner_id"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	ScheduledAt    time.Time  `gorm:"not null;index" json:"scheduled_at"`
	IsApproved     bool       `gorm:"not null" json:"is_approved"`
	IsManual       bool       `gorm:"not null" json:"is_manual"`
	Status         PostStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	ErrorMessage   *string    `gorm:"type:text" json:"error_message,omitempty"`
	ExternalPostID *string    `gorm:"size:64" json:"external_post_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Due reports whether the post is eligible for dispatch at now.
func (p *Post) Due(now time.Time) bool {
	return p.Status == PostStatusScheduled && p.IsApproved && !p.ScheduledAt.After(now)
}

// ValidatePostContent checks the rune length bounds of post text.
func ValidatePostContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return NewValidationError("content is required")
	}
	if n > MaxPostContentLength {
		return NewValidationError("content exceeds 280 characters")
	}
	return nil
}
