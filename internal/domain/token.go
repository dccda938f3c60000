package domain

import "time"

// TokenClaims represents the verified claims of an access token
type TokenClaims struct {
	AccountID string `json:"account_id"`
	SessionID string `json:"session_id"`
	Exp       int64  `json:"exp"`
	Iat       int64  `json:"iat"`
}

// TokenPair represents a pair of access and refresh tokens. The access
// token is a signed, self-verifying credential; the refresh token is an
// opaque single-use secret correlated 1:1 with a session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// IsExpired checks if the token is expired
func (tc TokenClaims) IsExpired() bool {
	return time.Now().Unix() > tc.Exp
}
