package repository

import (
	"context"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CredentialRepository persists encrypted platform credentials. It never
// sees plaintext tokens.
type CredentialRepository interface {
	Get(ctx context.Context, ownerID uint) (*models.PlatformCredential, error)
	Upsert(ctx context.Context, cred *models.PlatformCredential) error
	Delete(ctx context.Context, ownerID uint) error
	// ListCredentialedOwners returns owners whose credential is neither
	// revoked nor expired at now, ascending.
	ListCredentialedOwners(ctx context.Context, now time.Time) ([]uint, error)
}

type credentialRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db, logger: observability.NewRepoLogger("platform_credentials")}
}

func (r *credentialRepository) Get(ctx context.Context, ownerID uint) (*models.PlatformCredential, error) {
	var cred models.PlatformCredential
	if err := r.db.WithContext(ctx).First(&cred, "owner_id = ?", ownerID).Error; err != nil {
		return nil, wrapLookup(err, "PlatformCredential", ownerID)
	}
	return &cred, nil
}

func (r *credentialRepository) Upsert(ctx context.Context, cred *models.PlatformCredential) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_id", "encrypted_token", "expires_at", "revoked_at", "updated_at"}),
	}).Create(cred).Error
	if err != nil {
		r.logger.LogError(ctx, err, "upsert")
		return wrapDB(err)
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"owner_id": cred.OwnerID, "account_id": cred.AccountID})
	return nil
}

func (r *credentialRepository) Delete(ctx context.Context, ownerID uint) error {
	res := r.db.WithContext(ctx).Delete(&models.PlatformCredential{}, "owner_id = ?", ownerID)
	if res.Error != nil {
		return wrapDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("PlatformCredential", ownerID)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"owner_id": ownerID})
	return nil
}

func (r *credentialRepository) ListCredentialedOwners(ctx context.Context, now time.Time) ([]uint, error) {
	defer observability.TrackQuery("list_credentialed_owners", "platform_credentials")()

	var owners []uint
	err := r.db.WithContext(ctx).
		Model(&models.PlatformCredential{}).
		Where("revoked_at IS NULL AND (expires_at IS NULL OR expires_at > ?)", now.UTC()).
		Order("owner_id ASC").
		Pluck("owner_id", &owners).Error
	if err != nil {
		return nil, wrapDB(err)
	}
	return owners, nil
}
