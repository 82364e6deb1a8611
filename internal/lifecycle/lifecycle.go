// Package lifecycle defines the legal status transitions of a scheduled post.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
)

// Event is an operation that moves a post between statuses.
type Event string

const (
	EventApprove         Event = "approve"
	EventDispatchSuccess Event = "dispatch_success"
	EventDispatchFailure Event = "dispatch_failure"
	EventRetry           Event = "retry"
	EventRegenerate      Event = "regenerate"
	EventEdit            Event = "edit"
)

// rule is one row of the transition table.
type rule struct {
	from []models.PostStatus
	to   models.PostStatus
}

var rules = map[Event]rule{
	EventApprove:         {from: []models.PostStatus{models.PostStatusUnapproved}, to: models.PostStatusScheduled},
	EventDispatchSuccess: {from: []models.PostStatus{models.PostStatusScheduled}, to: models.PostStatusPosted},
	EventDispatchFailure: {from: []models.PostStatus{models.PostStatusScheduled}, to: models.PostStatusFailed},
	EventRetry:           {from: []models.PostStatus{models.PostStatusFailed}, to: models.PostStatusScheduled},
	EventRegenerate: {
		from: []models.PostStatus{models.PostStatusUnapproved, models.PostStatusScheduled, models.PostStatusFailed},
		to:   models.PostStatusUnapproved,
	},
}

// editable statuses keep their status when content or schedule is edited.
var editable = []models.PostStatus{
	models.PostStatusUnapproved,
	models.PostStatusScheduled,
	models.PostStatusFailed,
}

// Sources returns the statuses an event may be applied from.
func Sources(ev Event) []models.PostStatus {
	if ev == EventEdit {
		return append([]models.PostStatus(nil), editable...)
	}
	r, ok := rules[ev]
	if !ok {
		return nil
	}
	return append([]models.PostStatus(nil), r.from...)
}

// Next returns the status reached by applying ev to from, or a ConflictError
// when the table forbids it.
func Next(from models.PostStatus, ev Event) (models.PostStatus, error) {
	if !from.Valid() {
		return "", fmt.Errorf("unknown post status %q", from)
	}
	if from.Terminal() {
		return "", conflict(from, ev)
	}
	if ev == EventEdit {
		if contains(editable, from) {
			return from, nil
		}
		return "", conflict(from, ev)
	}
	r, ok := rules[ev]
	if !ok {
		return "", fmt.Errorf("unknown lifecycle event %q", ev)
	}
	if !contains(r.from, from) {
		return "", conflict(from, ev)
	}
	return r.to, nil
}

// CanApply reports whether ev is legal from status.
func CanApply(from models.PostStatus, ev Event) bool {
	_, err := Next(from, ev)
	return err == nil
}

// Effect carries the data an event writes alongside the status change.
type Effect struct {
	At             time.Time
	ExternalPostID string
	ErrorMessage   string
	Content        string
}

// Apply performs ev on p in memory, keeping the optional fields consistent with
// the resulting status: posted_at and external_post_id exist only on posted
// posts and error_message only on failed ones.
func Apply(p *models.Post, ev Event, eff Effect) error {
	to, err := Next(p.Status, ev)
	if err != nil {
		return err
	}

	switch ev {
	case EventApprove:
		p.IsApproved = true
	case EventDispatchSuccess:
		at := eff.At
		id := eff.ExternalPostID
		p.PostedAt = &at
		p.ExternalPostID = &id
		p.ErrorMessage = nil
	case EventDispatchFailure:
		msg := eff.ErrorMessage
		p.ErrorMessage = &msg
	case EventRetry:
		p.ErrorMessage = nil
	case EventRegenerate:
		p.Content = eff.Content
		p.IsApproved = false
		p.ErrorMessage = nil
	case EventEdit:
		if eff.Content != "" {
			p.Content = eff.Content
		}
		if !eff.At.IsZero() {
			p.ScheduledAt = eff.At
		}
	}
	p.Status = to
	return nil
}

// NewManual returns a post created directly by its owner, scheduled immediately.
func NewManual(ownerID uint, content string, scheduledAt time.Time) *models.Post {
	return &models.Post{
		OwnerID:     ownerID,
		Content:     content,
		ScheduledAt: scheduledAt,
		IsApproved:  true,
		IsManual:    true,
		Status:      models.PostStatusScheduled,
	}
}

// NewGenerated returns a generated draft awaiting approval.
func NewGenerated(ownerID uint, content string, scheduledAt time.Time) *models.Post {
	return &models.Post{
		OwnerID:     ownerID,
		Content:     content,
		ScheduledAt: scheduledAt,
		Status:      models.PostStatusUnapproved,
	}
}

func conflict(from models.PostStatus, ev Event) error {
	return models.NewConflictError(fmt.Sprintf("cannot %s a post in status %s", verb(ev), from))
}

func verb(ev Event) string {
	switch ev {
	case EventDispatchSuccess, EventDispatchFailure:
		return "dispatch"
	default:
		return string(ev)
	}
}

func contains(list []models.PostStatus, s models.PostStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
