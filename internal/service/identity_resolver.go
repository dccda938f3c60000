package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vividly/identity-service/internal/domain"
	"github.com/vividly/identity-service/internal/provider"
	"github.com/vividly/identity-service/internal/repository"
	"github.com/vividly/identity-service/internal/utils"
	"go.uber.org/zap"
)

// IdentityResolver maps a verified external identity to an existing or
// new local account. Merging into an existing account by email happens
// only when the provider asserts the email as verified; otherwise a
// claimed address could take over someone else's account.
type IdentityResolver struct {
	accounts   repository.AccountRepository
	identities repository.IdentityRepository
	logger     *zap.Logger
}

// NewIdentityResolver creates a new identity resolver
func NewIdentityResolver(accounts repository.AccountRepository, identities repository.IdentityRepository, logger *zap.Logger) *IdentityResolver {
	return &IdentityResolver{
		accounts:   accounts,
		identities: identities,
		logger:     logger,
	}
}

// Resolve returns the account owning the given provider identity,
// linking or creating records as needed.
func (r *IdentityResolver) Resolve(ctx context.Context, providerName string, profile *provider.Profile) (*domain.Account, error) {
	// (a) existing link for (provider, provider_user_id)
	identity, err := r.identities.GetByProvider(ctx, providerName, profile.ProviderUserID)
	if err == nil {
		return r.resolveLinked(ctx, identity, profile)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up federated identity: %w", err)
	}

	email := utils.SanitizeEmail(profile.Email)

	// (b) existing account with the same email
	account, err := r.accounts.GetByEmail(ctx, email)
	if err == nil {
		return r.mergeByEmail(ctx, providerName, account, profile)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up account by email: %w", err)
	}

	// (c) first login with an unseen email: new federation-only account
	return r.createAccount(ctx, providerName, email, profile)
}

func (r *IdentityResolver) resolveLinked(ctx context.Context, identity *domain.FederatedIdentity, profile *provider.Profile) (*domain.Account, error) {
	account, err := r.accounts.GetByID(ctx, identity.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account for identity: %w", err)
	}

	if !account.IsActive {
		return nil, ErrAccountDisabled
	}

	// Refresh the cached profile snapshot. Best effort.
	email := utils.SanitizeEmail(profile.Email)
	if err := r.identities.UpdateProfile(ctx, identity.ID, &email, profile.Raw); err != nil {
		r.logger.Warn("failed to refresh identity profile",
			zap.String("identity_id", identity.ID), zap.Error(err))
	}

	return account, nil
}

func (r *IdentityResolver) mergeByEmail(ctx context.Context, providerName string, account *domain.Account, profile *provider.Profile) (*domain.Account, error) {
	if !profile.EmailVerified {
		// The provider did not verify this address; merging would let
		// anyone claiming the email hijack the account.
		return nil, ErrEmailUnavailable
	}

	if !account.IsActive {
		return nil, ErrAccountDisabled
	}

	email := utils.SanitizeEmail(profile.Email)
	identity := &domain.FederatedIdentity{
		AccountID:      account.ID,
		Provider:       providerName,
		ProviderUserID: profile.ProviderUserID,
		Email:          &email,
		Profile:        profile.Raw,
	}

	if err := r.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentity) {
			// Lost a race against a concurrent first login; the link now exists.
			return r.retryLinked(ctx, providerName, profile)
		}
		return nil, fmt.Errorf("failed to link federated identity: %w", err)
	}

	r.logger.Info("linked provider to existing account",
		zap.String("provider", providerName),
		zap.String("account_id", account.ID),
	)

	return account, nil
}

func (r *IdentityResolver) createAccount(ctx context.Context, providerName, email string, profile *provider.Profile) (*domain.Account, error) {
	firstName, lastName := splitName(profile.Name)

	account := &domain.Account{
		Email:           email,
		FirstName:       firstName,
		LastName:        lastName,
		AvatarURL:       profile.AvatarURL,
		IsActive:        true,
		IsEmailVerified: profile.EmailVerified,
	}

	if err := r.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// Lost a race against a concurrent signup with the same email.
			existing, getErr := r.accounts.GetByEmail(ctx, email)
			if getErr != nil {
				return nil, fmt.Errorf("failed to get account after duplicate: %w", getErr)
			}
			return r.mergeByEmail(ctx, providerName, existing, profile)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	identity := &domain.FederatedIdentity{
		AccountID:      account.ID,
		Provider:       providerName,
		ProviderUserID: profile.ProviderUserID,
		Email:          &email,
		Profile:        profile.Raw,
	}

	if err := r.identities.Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to link federated identity: %w", err)
	}

	r.logger.Info("created account from federated login",
		zap.String("provider", providerName),
		zap.String("account_id", account.ID),
	)

	return account, nil
}

func (r *IdentityResolver) retryLinked(ctx context.Context, providerName string, profile *provider.Profile) (*domain.Account, error) {
	identity, err := r.identities.GetByProvider(ctx, providerName, profile.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read federated identity: %w", err)
	}
	return r.resolveLinked(ctx, identity, profile)
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch {
	case len(parts) == 0:
		return "", ""
	case len(parts) == 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
