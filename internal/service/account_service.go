package service

import (
	"context"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/credential"
)

// AccountService manages the owner's connected platform account.
type AccountService struct {
	store *credential.Store
}

type ConnectAccountInput struct {
	OwnerID     uint   `validate:"required"`
	AccessToken string `validate:"required,max=4096"`
	AccountID   string `validate:"required,max=64"`
	ExpiresAt   *time.Time
}

func NewAccountService(store *credential.Store) *AccountService {
	return &AccountService{store: store}
}

// Connect stores an already-obtained access token, encrypted.
func (s *AccountService) Connect(ctx context.Context, in ConnectAccountInput) (*credential.Status, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return s.store.Save(ctx, credential.SaveInput{
		OwnerID:     in.OwnerID,
		AccountID:   in.AccountID,
		AccessToken: in.AccessToken,
		ExpiresAt:   in.ExpiresAt,
	})
}

func (s *AccountService) Status(ctx context.Context, ownerID uint) (*credential.Status, error) {
	return s.store.Status(ctx, ownerID)
}

func (s *AccountService) Disconnect(ctx context.Context, ownerID uint) error {
	return s.store.Delete(ctx, ownerID)
}
