package service

import (
	"context"

	"github.com/vividly/identity-service/internal/domain"
	"github.com/vividly/identity-service/internal/dto"
)

// AuthService defines the surface the rest of the platform consumes for
// authentication and session management.
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest, ip, userAgent string) (*AuthResult, error)
	Login(ctx context.Context, req *dto.LoginRequest, ip, userAgent string) (*AuthResult, error)

	BeginFederated(ctx context.Context, providerName string) (string, error)
	CompleteFederated(ctx context.Context, providerName, code, state, ip, userAgent string) (*AuthResult, error)

	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	VerifyAccess(ctx context.Context, token string) (*domain.TokenClaims, error)

	Logout(ctx context.Context, accountID, sessionID string) error
	LogoutAll(ctx context.Context, accountID string) error
	ListSessions(ctx context.Context, accountID string) ([]*dto.SessionResponse, error)
	RevokeSession(ctx context.Context, accountID, sessionID string) error

	GetAccount(ctx context.Context, accountID string) (*dto.AccountResponse, error)
	UpdateProfile(ctx context.Context, accountID string, req *dto.UpdateProfileRequest) (*dto.AccountResponse, error)
	ChangePassword(ctx context.Context, accountID string, req *dto.ChangePasswordRequest) error
	ChangeEmail(ctx context.Context, accountID string, req *dto.ChangeEmailRequest) (*dto.AccountResponse, error)
	Deactivate(ctx context.Context, accountID string) error
}

// StateStore issues and atomically consumes one-time CSRF state tokens
// for the federated login flow.
type StateStore interface {
	Issue(ctx context.Context, provider string) (string, error)
	Consume(ctx context.Context, value, provider string) error
}
