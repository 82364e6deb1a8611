package models

import "time"

// PlatformCredential is an owner's encrypted access token for the publishing platform.
// The token never leaves the credential package in plaintext form.
type PlatformCredential struct {
	OwnerID        uint       `gorm:"primaryKey;autoIncrement:false" json:"owner_id"`
	AccountID      string     `gorm:"size:64;not null" json:"account_id"`
	EncryptedToken []byte     `gorm:"not null" json:"-"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Usable reports whether the credential can be used at now.
func (c *PlatformCredential) Usable(now time.Time) bool {
	if c.RevokedAt != nil {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}
