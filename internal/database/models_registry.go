package database

import "github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Post{},
		&models.FollowerSnapshot{},
		&models.TimeSlotConfig{},
		&models.PlatformCredential{},
	}
}
