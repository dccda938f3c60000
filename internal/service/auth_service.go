package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vividly/identity-service/internal/domain"
	"github.com/vividly/identity-service/internal/dto"
	"github.com/vividly/identity-service/internal/provider"
	"github.com/vividly/identity-service/internal/repository"
	"github.com/vividly/identity-service/internal/utils"
	"go.uber.org/zap"
)

// authService implements AuthService. It orchestrates the verifier,
// resolver, state store, provider adapters, and token service; account
// and session identifiers are always passed explicitly, never read from
// ambient state.
type authService struct {
	accounts   repository.AccountRepository
	identities repository.IdentityRepository
	sessions   repository.SessionRepository
	verifier   *CredentialVerifier
	resolver   *IdentityResolver
	tokens     *TokenService
	states     StateStore
	providers  map[string]provider.Adapter
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	repos *repository.Repositories,
	verifier *CredentialVerifier,
	resolver *IdentityResolver,
	tokens *TokenService,
	states StateStore,
	adapters []provider.Adapter,
	bcryptCost int,
	logger *zap.Logger,
) AuthService {
	providers := make(map[string]provider.Adapter, len(adapters))
	for _, a := range adapters {
		providers[a.Name()] = a
	}

	return &authService{
		accounts:   repos.Account,
		identities: repos.Identity,
		sessions:   repos.Session,
		verifier:   verifier,
		resolver:   resolver,
		tokens:     tokens,
		states:     states,
		providers:  providers,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register registers a new local account and opens its first session
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest, ip, userAgent string) (*AuthResult, error) {
	if !utils.ValidateEmail(req.Email) {
		return nil, ErrInvalidEmail
	}

	if !utils.ValidatePassword(req.Password) {
		return nil, ErrWeakPassword
	}

	email := utils.SanitizeEmail(req.Email)

	// Check if account already exists
	_, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check account existence: %w", err)
	}

	passwordHash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account registered", zap.String("account_id", account.ID))

	return s.mint(ctx, account, ip, userAgent)
}

// Login authenticates a local account
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, ip, userAgent string) (*AuthResult, error) {
	account, err := s.verifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	return s.mint(ctx, account, ip, userAgent)
}

// BeginFederated issues a one-time state token and returns the provider's
// authorization URL with it embedded
func (s *authService) BeginFederated(ctx context.Context, providerName string) (string, error) {
	adapter, ok := s.providers[providerName]
	if !ok {
		return "", ErrUnknownProvider
	}

	state, err := s.states.Issue(ctx, providerName)
	if err != nil {
		return "", fmt.Errorf("failed to issue state token: %w", err)
	}

	return adapter.AuthorizeURL(state), nil
}

// CompleteFederated finishes the federated flow: state consumption, code
// exchange, profile fetch, identity resolution, session creation. Any
// failure is terminal; resolution and session creation run last, so a
// failed exchange or state check leaves no partial records.
func (s *authService) CompleteFederated(ctx context.Context, providerName, code, state, ip, userAgent string) (*AuthResult, error) {
	adapter, ok := s.providers[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}

	if err := s.states.Consume(ctx, state, providerName); err != nil {
		return nil, err
	}

	providerToken, err := adapter.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := adapter.FetchProfile(ctx, providerToken)
	if err != nil {
		return nil, err
	}

	account, err := s.resolver.Resolve(ctx, providerName, profile)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateLastLogin(ctx, account.ID); err != nil {
		s.logger.Warn("failed to update last login", zap.String("account_id", account.ID), zap.Error(err))
	}

	s.logger.Info("federated login",
		zap.String("provider", providerName),
		zap.String("account_id", account.ID),
	)

	return s.mint(ctx, account, ip, userAgent)
}

// Refresh rotates a refresh token for a new token pair
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	pair, session, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshReuseDetected) {
			s.logger.Warn("refresh token reuse detected")
		}
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !account.IsActive {
		if err := s.sessions.Revoke(ctx, session.ID); err != nil {
			s.logger.Warn("failed to revoke session of disabled account", zap.Error(err))
		}
		return nil, ErrSessionRevokedOrExpired
	}

	return s.authResult(account, pair), nil
}

// VerifyAccess verifies an access token and returns its claims
func (s *authService) VerifyAccess(ctx context.Context, token string) (*domain.TokenClaims, error) {
	return s.tokens.VerifyAccess(token)
}

// Logout revokes the caller's session. Already-revoked and unknown
// sessions are treated as logged out.
func (s *authService) Logout(ctx context.Context, accountID, sessionID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	if session.AccountID != accountID || session.IsRevoked() {
		return nil
	}

	if err := s.sessions.Revoke(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// LogoutAll revokes every session of the account
func (s *authService) LogoutAll(ctx context.Context, accountID string) error {
	if err := s.sessions.RevokeAllByAccountID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	s.logger.Info("all sessions revoked", zap.String("account_id", accountID))
	return nil
}

// ListSessions returns the account's sessions, most recent first
func (s *authService) ListSessions(ctx context.Context, accountID string) ([]*dto.SessionResponse, error) {
	sessions, err := s.sessions.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	responses := make([]*dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, sessionResponse(session))
	}

	return responses, nil
}

// RevokeSession revokes one of the account's sessions by id
func (s *authService) RevokeSession(ctx context.Context, accountID, sessionID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	if session.AccountID != accountID {
		return ErrSessionNotFound
	}

	if session.IsRevoked() {
		return nil
	}

	if err := s.sessions.Revoke(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// GetAccount returns the account projection
func (s *authService) GetAccount(ctx context.Context, accountID string) (*dto.AccountResponse, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return accountResponse(account), nil
}

// UpdateProfile updates the account's profile fields
func (s *authService) UpdateProfile(ctx context.Context, accountID string, req *dto.UpdateProfileRequest) (*dto.AccountResponse, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if req.FirstName != nil {
		account.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		account.LastName = *req.LastName
	}
	if req.AvatarURL != nil {
		account.AvatarURL = *req.AvatarURL
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return accountResponse(account), nil
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes every session of the account
func (s *authService) ChangePassword(ctx context.Context, accountID string, req *dto.ChangePasswordRequest) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}

	if !account.HasPassword() {
		return ErrPasswordUnset
	}

	if !utils.CheckPasswordHash(req.CurrentPassword, account.PasswordHash) {
		return ErrPasswordIncorrect
	}

	if !utils.ValidatePassword(req.NewPassword) {
		return ErrWeakPassword
	}

	passwordHash, err := utils.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account.PasswordHash = passwordHash
	if err := s.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	s.logger.Info("password changed", zap.String("account_id", accountID))

	return s.LogoutAll(ctx, accountID)
}

// ChangeEmail sets a new email, clears its verified flag, and drops the
// account's provider links. Links re-form only when a provider asserts
// the new address.
func (s *authService) ChangeEmail(ctx context.Context, accountID string, req *dto.ChangeEmailRequest) (*dto.AccountResponse, error) {
	if !utils.ValidateEmail(req.Email) {
		return nil, ErrInvalidEmail
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	email := utils.SanitizeEmail(req.Email)
	if email == account.Email {
		return accountResponse(account), nil
	}

	account.Email = email
	account.IsEmailVerified = false

	if err := s.accounts.Update(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	if err := s.identities.DeleteByAccountID(ctx, accountID); err != nil {
		return nil, fmt.Errorf("failed to unlink federated identities: %w", err)
	}

	s.logger.Info("email changed, provider links dropped", zap.String("account_id", accountID))

	return accountResponse(account), nil
}

// Deactivate logically disables the account and revokes its sessions.
// Physical deletion is a separate, external operation.
func (s *authService) Deactivate(ctx context.Context, accountID string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}

	account.IsActive = false
	if err := s.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}

	s.logger.Info("account deactivated", zap.String("account_id", accountID))

	return s.LogoutAll(ctx, accountID)
}

func (s *authService) mint(ctx context.Context, account *domain.Account, ip, userAgent string) (*AuthResult, error) {
	pair, _, err := s.tokens.Mint(ctx, account.ID, ip, userAgent)
	if err != nil {
		return nil, err
	}
	return s.authResult(account, pair), nil
}

func accountResponse(account *domain.Account) *dto.AccountResponse {
	response := &dto.AccountResponse{
		ID:              account.ID,
		Email:           account.Email,
		FirstName:       account.FirstName,
		LastName:        account.LastName,
		AvatarURL:       account.AvatarURL,
		IsEmailVerified: account.IsEmailVerified,
		CreatedAt:       account.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       account.UpdatedAt.Format(time.RFC3339),
	}

	if account.LastLoginAt != nil {
		lastLogin := account.LastLoginAt.Format(time.RFC3339)
		response.LastLoginAt = &lastLogin
	}

	return response
}

func sessionResponse(session *domain.Session) *dto.SessionResponse {
	response := &dto.SessionResponse{
		ID:        session.ID,
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
		CreatedAt: session.CreatedAt.Format(time.RFC3339),
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		Revoked:   session.IsRevoked(),
	}

	if session.LastUsedAt != nil {
		lastUsed := session.LastUsedAt.Format(time.RFC3339)
		response.LastUsedAt = &lastUsed
	}

	return response
}
