package service

import (
	"github.com/vividly/identity-service/internal/domain"
	"github.com/vividly/identity-service/internal/dto"
)

// AuthResult bundles the auth response body with the refresh token, which
// travels separately (httpOnly cookie scoped to the refresh path).
type AuthResult struct {
	AuthResponse *dto.AuthResponse
	RefreshToken string
	ExpiresIn    int // Refresh token expiry in seconds
}

func (s *authService) authResult(account *domain.Account, pair *domain.TokenPair) *AuthResult {
	return &AuthResult{
		AuthResponse: &dto.AuthResponse{
			AccessToken: pair.AccessToken,
			TokenType:   pair.TokenType,
			ExpiresIn:   pair.ExpiresIn,
			Account: dto.AccountInfo{
				ID:    account.ID,
				Email: account.Email,
			},
		},
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(s.tokens.RefreshTokenExpiry().Seconds()),
	}
}
