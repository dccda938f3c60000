package repository

import (
	"github.com/vividly/identity-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	Account  AccountRepository
	Identity IdentityRepository
	Session  SessionRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		Account:  NewAccountRepository(db),
		Identity: NewIdentityRepository(db),
		Session:  NewSessionRepository(db),
	}
}
