package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when trying to create an account with an existing email
	ErrDuplicateEmail = errors.New("account with this email already exists")

	// ErrDuplicateIdentity is returned when a (provider, provider_user_id) link already exists
	ErrDuplicateIdentity = errors.New("federated identity already exists")

	// ErrDuplicateTokenHash is returned when a session with the same refresh token hash exists
	ErrDuplicateTokenHash = errors.New("session with this token hash already exists")
)
