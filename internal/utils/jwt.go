package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vividly/identity-service/internal/domain"
)

// ErrInvalidAccessToken is returned for any malformed, mis-signed,
// mistyped, or expired access token.
var ErrInvalidAccessToken = errors.New("invalid access token")

// JWTManager signs and verifies access tokens. Access tokens are
// stateless: verification is a local signature and expiry check, with the
// session id carried as a claim so revocation checks can correlate
// without a store lookup.
type JWTManager struct {
	secret            []byte
	accessTokenExpiry time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, accessTokenExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:            []byte(secret),
		accessTokenExpiry: accessTokenExpiry,
	}
}

// GenerateAccessToken signs an access token for the account/session pair
func (j *JWTManager) GenerateAccessToken(accountID, sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  accountID,
		"sid":  sessionID,
		"iat":  now.Unix(),
		"exp":  now.Add(j.accessTokenExpiry).Unix(),
		"type": "access",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ValidateAccessToken verifies signature, shape, type, and expiry of an
// access token and returns its claims
func (j *JWTManager) ValidateAccessToken(tokenString string) (*domain.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", ErrInvalidAccessToken)
	}

	if !token.Valid {
		return nil, ErrInvalidAccessToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidAccessToken
	}

	if claims["type"] != "access" {
		return nil, fmt.Errorf("wrong token type: %w", ErrInvalidAccessToken)
	}

	accountID, ok := claims["sub"].(string)
	if !ok || accountID == "" {
		return nil, fmt.Errorf("missing sub claim: %w", ErrInvalidAccessToken)
	}

	sessionID, ok := claims["sid"].(string)
	if !ok || sessionID == "" {
		return nil, fmt.Errorf("missing sid claim: %w", ErrInvalidAccessToken)
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("missing exp claim: %w", ErrInvalidAccessToken)
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, fmt.Errorf("missing iat claim: %w", ErrInvalidAccessToken)
	}

	tokenClaims := &domain.TokenClaims{
		AccountID: accountID,
		SessionID: sessionID,
		Exp:       int64(exp),
		Iat:       int64(iat),
	}

	if tokenClaims.IsExpired() {
		return nil, fmt.Errorf("token is expired: %w", ErrInvalidAccessToken)
	}

	return tokenClaims, nil
}

// GetAccessTokenExpiry returns the access token expiry duration in seconds
func (j *JWTManager) GetAccessTokenExpiry() int {
	return int(j.accessTokenExpiry.Seconds())
}
