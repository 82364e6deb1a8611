package models

import (
	"database/sql/driver"
	"fmt"
)

// PostStatus is the lifecycle state of a scheduled post.
type PostStatus string

const (
	// PostStatusUnapproved is a generated draft waiting for owner approval.
	PostStatusUnapproved PostStatus = "unapproved"
	// PostStatusScheduled is approved and waiting for its scheduled time.
	PostStatusScheduled PostStatus = "scheduled"
	// PostStatusPosted has been published. Terminal.
	PostStatusPosted PostStatus = "posted"
	// PostStatusFailed was attempted and rejected by the platform.
	PostStatusFailed PostStatus = "failed"
)

// PostStatuses lists every valid status in lifecycle order.
var PostStatuses = []PostStatus{
	PostStatusUnapproved,
	PostStatusScheduled,
	PostStatusPosted,
	PostStatusFailed,
}

// ParsePostStatus converts raw input into a PostStatus, rejecting unknown values.
func ParsePostStatus(raw string) (PostStatus, error) {
	s := PostStatus(raw)
	if !s.Valid() {
		return "", NewValidationError(fmt.Sprintf("unknown post status %q", raw))
	}
	return s, nil
}

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusUnapproved, PostStatusScheduled, PostStatusPosted, PostStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s PostStatus) Terminal() bool {
	return s == PostStatusPosted
}

func (s PostStatus) String() string {
	return string(s)
}

// Value implements driver.Valuer.
func (s PostStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid post status %q", string(s))
	}
	return string(s), nil
}

// Scan implements sql.Scanner. Unknown stored values are an error rather than
// a silently accepted string.
func (s *PostStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		return fmt.Errorf("post status is null")
	default:
		return fmt.Errorf("unsupported post status type %T", src)
	}
	parsed := PostStatus(raw)
	if !parsed.Valid() {
		return fmt.Errorf("invalid post status %q in store", raw)
	}
	*s = parsed
	return nil
}
