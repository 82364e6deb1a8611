package models

import "time"

// FollowerSnapshot is an immutable point-in-time record of an account's audience.
type FollowerSnapshot struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OwnerID        uint      `gorm:"not null;index:idx_follower_snapshots_owner_recorded,priority:1" json:"owner_id"`
	FollowerCount  int64     `gorm:"not null" json:"follower_count"`
	FollowingCount *int64    `json:"following_count,omitempty"`
	RecordedAt     time.Time `gorm:"not null;index:idx_follower_snapshots_owner_recorded,priority:2" json:"recorded_at"`
}
