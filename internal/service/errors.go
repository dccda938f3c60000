package service

import (
	"errors"

	"github.com/vividly/identity-service/internal/provider"
)

// Authentication failure taxonomy. Every failure crossing the service
// boundary is one of these sentinels (possibly wrapped), so handlers map
// them to HTTP statuses without inspecting messages.
var (
	// ErrInvalidCredentials covers wrong password, unknown email, and
	// federation-only accounts alike, to resist account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountDisabled is returned for logically deactivated accounts.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrStateInvalid is returned for a missing, expired, reused, or
	// provider-mismatched CSRF state token.
	ErrStateInvalid = errors.New("authentication request expired or was tampered with; restart login")

	// ErrUnknownProvider is returned for a provider name with no adapter.
	ErrUnknownProvider = errors.New("unknown oauth provider")

	// ErrTokenInvalid is returned for a bad, expired, or malformed access token.
	ErrTokenInvalid = errors.New("invalid or expired access token")

	// ErrSessionRevokedOrExpired is returned when a refresh token's
	// session is revoked, expired, or absent.
	ErrSessionRevokedOrExpired = errors.New("session revoked or expired")

	// ErrRefreshReuseDetected is returned when an already-rotated refresh
	// token is presented again. The session is revoked as a side effect.
	ErrRefreshReuseDetected = errors.New("refresh token reuse detected; session revoked")

	// ErrSessionNotFound is returned when a session id does not belong to
	// the caller's account.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmailTaken is returned on registration or email change with an
	// email already bound to another account.
	ErrEmailTaken = errors.New("account with this email already exists")

	// ErrInvalidEmail is returned for a syntactically invalid email.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword is returned when a password fails the strength policy.
	ErrWeakPassword = errors.New("password must be at least 8 characters long and contain uppercase, lowercase, and number")

	// ErrPasswordIncorrect is returned on password change with a wrong current password.
	ErrPasswordIncorrect = errors.New("current password is incorrect")

	// ErrPasswordUnset is returned on password change for a federation-only account.
	ErrPasswordUnset = errors.New("account has no password set")

	// ErrRateLimitExceeded is returned when a caller has exhausted its
	// request budget for the current window. Usually wrapped in a
	// RateLimitError carrying the retry-after hint.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Provider failures surface under the same taxonomy.
var (
	ErrProviderExchangeFailed = provider.ErrExchangeFailed
	ErrProviderUnavailable    = provider.ErrUnavailable
	ErrEmailUnavailable       = provider.ErrEmailUnavailable
)
