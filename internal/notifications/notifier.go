// Package notifications publishes per-owner events into Redis channels.
package notifications

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Event types published to owner channels.
const (
	EventPostPosted        = "post.posted"
	EventPostFailed        = "post.failed"
	EventFollowersRecorded = "followers.recorded"
)

// Event is the JSON payload delivered to an owner's channel.
type Event struct {
	Type           string    `json:"type"`
	OwnerID        uint      `json:"owner_id"`
	PostID         uint      `json:"post_id,omitempty"`
	ExternalPostID string    `json:"external_post_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	FollowerCount  *int64    `json:"follower_count,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(
	ctx context.Context, userID uint, payload string,
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishEvent encodes ev and sends it to the owner's channel.
func (n *Notifier) PublishEvent(ctx context.Context, ev Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.PublishUser(ctx, ev.OwnerID, string(payload))
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}
