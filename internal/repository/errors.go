package repository

import (
	"errors"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"

	"gorm.io/gorm"
)

// wrapLookup converts a single-row lookup error into the application taxonomy.
func wrapLookup(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewDatabaseError(err)
}

func wrapDB(err error) error {
	if err == nil {
		return nil
	}
	return models.NewDatabaseError(err)
}
