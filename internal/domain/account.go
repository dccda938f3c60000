package domain

import (
	"encoding/json"
	"time"
)

// Account represents a durable identity in the system. An account is created
// either by local registration or by the first federated login with an
// unseen email; federation-only accounts have an empty PasswordHash.
type Account struct {
	ID               string     `json:"id" db:"id"`
	Email            string     `json:"email" db:"email"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	FirstName        string     `json:"first_name" db:"first_name"`
	LastName         string     `json:"last_name" db:"last_name"`
	AvatarURL        string     `json:"avatar_url" db:"avatar_url"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	IsEmailVerified  bool       `json:"is_email_verified" db:"is_email_verified"`
	TwoFactorEnabled bool       `json:"two_factor_enabled" db:"two_factor_enabled"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt      *time.Time `json:"last_login_at" db:"last_login_at"`
}

// HasPassword reports whether the account can authenticate locally.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// FederatedIdentity links an external provider identity to an account.
// (Provider, ProviderUserID) is globally unique; an account holds at most
// one identity per provider.
type FederatedIdentity struct {
	ID             string          `json:"id" db:"id"`
	AccountID      string          `json:"account_id" db:"account_id"`
	Provider       string          `json:"provider" db:"provider"` // github, google
	ProviderUserID string          `json:"provider_user_id" db:"provider_user_id"`
	Email          *string         `json:"email" db:"email"`
	Profile        json.RawMessage `json:"-" db:"profile"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Session represents one authenticated client context. The raw refresh
// token is never stored; RefreshTokenHash holds its SHA-256 digest and
// RotatedTokenHashes keeps every digest the session has rotated away
// from, so that reuse of an already-rotated token is detectable no
// matter how many rotations have happened since it was issued.
type Session struct {
	ID                 string     `json:"id" db:"id"`
	AccountID          string     `json:"account_id" db:"account_id"`
	RefreshTokenHash   string     `json:"-" db:"refresh_token_hash"`
	RotatedTokenHashes []string   `json:"-" db:"rotated_token_hashes"`
	IPAddress          *string    `json:"ip_address" db:"ip_address"`
	UserAgent          *string    `json:"user_agent" db:"user_agent"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt          time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt         *time.Time `json:"last_used_at" db:"last_used_at"`
	RevokedAt          *time.Time `json:"revoked_at" db:"revoked_at"`
}

// IsRevoked reports whether the session has been explicitly revoked.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpired reports whether the session has passed its expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
