package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vividly/identity-service/internal/domain"
	"github.com/vividly/identity-service/internal/repository"
	"github.com/vividly/identity-service/internal/utils"
)

const refreshTokenBytes = 32

// TokenService mints, verifies, and rotates access/refresh token pairs.
// Access tokens are signed JWTs verified locally; refresh tokens are
// opaque single-use secrets whose SHA-256 hash lives on the session row.
type TokenService struct {
	sessions           repository.SessionRepository
	jwtManager         *utils.JWTManager
	refreshTokenExpiry time.Duration
}

// NewTokenService creates a new token service
func NewTokenService(sessions repository.SessionRepository, jwtManager *utils.JWTManager, refreshTokenExpiry time.Duration) *TokenService {
	return &TokenService{
		sessions:           sessions,
		jwtManager:         jwtManager,
		refreshTokenExpiry: refreshTokenExpiry,
	}
}

// Mint creates a session for the account and issues its first token pair.
func (s *TokenService) Mint(ctx context.Context, accountID string, ip, userAgent string) (*domain.TokenPair, *domain.Session, error) {
	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	session := &domain.Session{
		AccountID:        accountID,
		RefreshTokenHash: HashToken(refreshToken),
		ExpiresAt:        time.Now().Add(s.refreshTokenExpiry),
	}
	if ip != "" {
		session.IPAddress = &ip
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	pair, err := s.pair(accountID, session.ID, refreshToken)
	if err != nil {
		return nil, nil, err
	}

	return pair, session, nil
}

// VerifyAccess verifies an access token locally: signature, expiry, and
// claim shape. No store lookup is involved.
func (s *TokenService) VerifyAccess(token string) (*domain.TokenClaims, error) {
	claims, err := s.jwtManager.ValidateAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrTokenInvalid)
	}
	return claims, nil
}

// Rotate exchanges a refresh token for a new token pair. Refresh tokens
// are single-use: the rotation is one conditional update, so of N
// concurrent presentations of the same token exactly one succeeds.
// Presenting a token that has already been rotated, no matter how many
// generations back, is treated as a theft signal and revokes the whole
// session.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (*domain.TokenPair, *domain.Session, error) {
	oldHash := HashToken(refreshToken)

	newToken, err := generateRefreshToken()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	session, err := s.sessions.RotateTokenHash(ctx, oldHash, HashToken(newToken), time.Now().Add(s.refreshTokenExpiry))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			revoked, revokeErr := s.sessions.RevokeByRotatedTokenHash(ctx, oldHash)
			if revokeErr != nil {
				return nil, nil, fmt.Errorf("failed to check token reuse: %w", revokeErr)
			}
			if revoked {
				return nil, nil, ErrRefreshReuseDetected
			}
			return nil, nil, ErrSessionRevokedOrExpired
		}
		return nil, nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	pair, err := s.pair(session.AccountID, session.ID, newToken)
	if err != nil {
		return nil, nil, err
	}

	return pair, session, nil
}

// RefreshTokenExpiry returns the refresh token lifetime
func (s *TokenService) RefreshTokenExpiry() time.Duration {
	return s.refreshTokenExpiry
}

// AccessTokenExpiry returns the access token lifetime in seconds
func (s *TokenService) AccessTokenExpiry() int {
	return s.jwtManager.GetAccessTokenExpiry()
}

func (s *TokenService) pair(accountID, sessionID, refreshToken string) (*domain.TokenPair, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(accountID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.jwtManager.GetAccessTokenExpiry(),
	}, nil
}

// HashToken hashes a refresh token with SHA-256. Only the hash is ever
// persisted; a compromised store alone cannot replay a session.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
