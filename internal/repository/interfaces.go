package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vividly/identity-service/internal/domain"
)

// AccountRepository defines methods for account operations
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
	UpdateLastLogin(ctx context.Context, accountID string) error
}

// IdentityRepository defines methods for federated identity operations
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.FederatedIdentity) error
	GetByProvider(ctx context.Context, provider, providerUserID string) (*domain.FederatedIdentity, error)
	GetByAccountID(ctx context.Context, accountID string) ([]*domain.FederatedIdentity, error)
	UpdateProfile(ctx context.Context, identityID string, email *string, profile json.RawMessage) error
	DeleteByAccountID(ctx context.Context, accountID string) error
}

// SessionRepository defines methods for session operations. RotateTokenHash
// and RevokeByRotatedTokenHash are single conditional updates so that
// concurrent rotations of the same refresh token cannot both succeed.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByAccountID(ctx context.Context, accountID string) ([]*domain.Session, error)
	RotateTokenHash(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*domain.Session, error)
	RevokeByRotatedTokenHash(ctx context.Context, rotatedHash string) (bool, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllByAccountID(ctx context.Context, accountID string) error
	DeleteExpired(ctx context.Context, retention time.Duration) error
}
