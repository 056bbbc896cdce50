package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
)

type LinkedAccountService interface {
	ListLinkedAccounts(ctx context.Context, userID string) ([]model.LinkedAccount, error)
	UnlinkAccount(ctx context.Context, userID, accountID string) error
}

type linkedAccountService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewLinkedAccountService(store repository.Store, logger *zap.Logger) LinkedAccountService {
	return &linkedAccountService{store: store, logger: logger}
}

func (s *linkedAccountService) ListLinkedAccounts(ctx context.Context, userID string) ([]model.LinkedAccount, error) {
	accounts, err := s.store.LinkedAccounts().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked accounts: %w", err)
	}
	if accounts == nil {
		accounts = []model.LinkedAccount{}
	}
	return accounts, nil
}

// UnlinkAccount refuses to remove the last way a password-less user can sign in.
func (s *linkedAccountService) UnlinkAccount(ctx context.Context, userID, accountID string) error {
	// 1. List all linked accounts for user
	accounts, err := s.store.LinkedAccounts().ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list linked accounts: %w", err)
	}

	// 2. Verify the account belongs to user
	found := false
	for _, a := range accounts {
		if a.ID == accountID {
			found = true
			break
		}
	}
	if !found {
		return ErrLinkedAccountNotFound
	}

	// 3. Must keep a way in
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user.PasswordHash == "" && len(accounts) <= 1 {
		return ErrCannotUnlinkLast
	}

	// 4. Delete
	if err := s.store.LinkedAccounts().Delete(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkedAccountNotFound
		}
		return err
	}
	s.logger.Info("account unlinked", zap.String("user_id", userID), zap.String("account_id", accountID))
	return nil
}

var _ LinkedAccountService = (*linkedAccountService)(nil)
