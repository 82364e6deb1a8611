package credential

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/repository"
)

var (
	// ErrCredentialNotFound means the owner never connected an account.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialInvalid means a stored credential exists but cannot be used.
	ErrCredentialInvalid = errors.New("credential invalid")
)

// Credential is a decrypted, usable access token.
type Credential struct {
	OwnerID     uint
	AccountID   string
	AccessToken string
	ExpiresAt   *time.Time
}

// Status describes a stored credential without exposing the token.
type Status struct {
	Connected bool       `json:"connected"`
	Usable    bool       `json:"usable"`
	AccountID string     `json:"account_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// SaveInput is an already-obtained platform token handed over by the owner.
type SaveInput struct {
	OwnerID     uint
	AccountID   string
	AccessToken string
	ExpiresAt   *time.Time
}

// Store resolves and persists owner credentials.
type Store struct {
	repo   repository.CredentialRepository
	cipher *Cipher
	now    func() time.Time
}

// NewStore creates a credential store.
func NewStore(repo repository.CredentialRepository, cipher *Cipher) *Store {
	return &Store{repo: repo, cipher: cipher, now: time.Now}
}

// GetCredential returns the owner's usable credential. Missing rows yield
// ErrCredentialNotFound; revoked, expired or undecryptable rows yield
// ErrCredentialInvalid.
func (s *Store) GetCredential(ctx context.Context, ownerID uint) (*Credential, error) {
	row, err := s.repo.Get(ctx, ownerID)
	if models.IsCode(err, models.CodeNotFound) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	if !row.Usable(s.now()) {
		return nil, ErrCredentialInvalid
	}
	plain, err := s.cipher.Open(ownerID, row.EncryptedToken)
	if err != nil || len(plain) == 0 {
		return nil, ErrCredentialInvalid
	}
	return &Credential{
		OwnerID:     ownerID,
		AccountID:   row.AccountID,
		AccessToken: string(plain),
		ExpiresAt:   row.ExpiresAt,
	}, nil
}

// Save encrypts and stores a token, replacing any previous one.
func (s *Store) Save(ctx context.Context, in SaveInput) (*Status, error) {
	token := strings.TrimSpace(in.AccessToken)
	if token == "" {
		return nil, models.NewValidationError("access_token is required")
	}
	if strings.TrimSpace(in.AccountID) == "" {
		return nil, models.NewValidationError("account_id is required")
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, models.NewValidationError("expires_at must be in the future")
	}

	sealed, err := s.cipher.Seal(in.OwnerID, []byte(token))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	row := &models.PlatformCredential{
		OwnerID:        in.OwnerID,
		AccountID:      strings.TrimSpace(in.AccountID),
		EncryptedToken: sealed,
		ExpiresAt:      utcPtr(in.ExpiresAt),
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, err
	}
	return s.Status(ctx, in.OwnerID)
}

// Status reports connection state for the owner.
func (s *Store) Status(ctx context.Context, ownerID uint) (*Status, error) {
	row, err := s.repo.Get(ctx, ownerID)
	if models.IsCode(err, models.CodeNotFound) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, err
	}
	updated := row.UpdatedAt
	return &Status{
		Connected: true,
		Usable:    row.Usable(s.now()),
		AccountID: row.AccountID,
		ExpiresAt: row.ExpiresAt,
		RevokedAt: row.RevokedAt,
		UpdatedAt: &updated,
	}, nil
}

// Delete removes the owner's credential.
func (s *Store) Delete(ctx context.Context, ownerID uint) error {
	return s.repo.Delete(ctx, ownerID)
}

// ListOwners returns owners with a credential usable right now.
func (s *Store) ListOwners(ctx context.Context) ([]uint, error) {
	return s.repo.ListCredentialedOwners(ctx, s.now())
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
