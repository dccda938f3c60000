package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vividly/identity-service/internal/domain"
	"github.com/vividly/identity-service/internal/repository"
	"github.com/vividly/identity-service/internal/utils"
	"go.uber.org/zap"
)

// CredentialVerifier validates local email/password pairs. Unknown email,
// federation-only account, and wrong password all fail identically.
type CredentialVerifier struct {
	accounts repository.AccountRepository
	logger   *zap.Logger
}

// NewCredentialVerifier creates a new credential verifier
func NewCredentialVerifier(accounts repository.AccountRepository, logger *zap.Logger) *CredentialVerifier {
	return &CredentialVerifier{
		accounts: accounts,
		logger:   logger,
	}
}

// Verify checks an email/password pair and returns the matching account.
// On success the account's last-login timestamp is updated; a failure to
// record it is logged but does not fail the login.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*domain.Account, error) {
	account, err := v.accounts.GetByEmail(ctx, utils.SanitizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !account.HasPassword() {
		// Federation-only account. Indistinguishable from a wrong password.
		return nil, ErrInvalidCredentials
	}

	if !utils.CheckPasswordHash(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !account.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := v.accounts.UpdateLastLogin(ctx, account.ID); err != nil {
		v.logger.Warn("failed to update last login", zap.String("account_id", account.ID), zap.Error(err))
	}

	return account, nil
}
