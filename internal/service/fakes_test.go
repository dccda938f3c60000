package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vividly/identity-service/internal/domain"
	"github.com/vividly/identity-service/internal/repository"
)

// In-memory repositories for service tests. They enforce the same
// uniqueness and conditional-update semantics as the Postgres
// implementations, under a mutex so concurrency tests are meaningful.

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*domain.Account)}
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Email == account.Email {
			return repository.ErrDuplicateEmail
		}
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	clone := *account
	r.accounts[account.ID] = &clone
	return nil
}

func (r *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Email == email {
			clone := *a
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *fakeAccountRepo) Update(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok {
		return repository.ErrNotFound
	}

	for id, a := range r.accounts {
		if id != account.ID && a.Email == account.Email {
			return repository.ErrDuplicateEmail
		}
	}

	account.CreatedAt = stored.CreatedAt
	account.UpdatedAt = time.Now()
	clone := *account
	r.accounts[account.ID] = &clone
	return nil
}

func (r *fakeAccountRepo) UpdateLastLogin(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	a.LastLoginAt = &now
	return nil
}

type fakeIdentityRepo struct {
	mu         sync.Mutex
	identities map[string]*domain.FederatedIdentity
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{identities: make(map[string]*domain.FederatedIdentity)}
}

func (r *fakeIdentityRepo) Create(ctx context.Context, identity *domain.FederatedIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, i := range r.identities {
		if i.Provider == identity.Provider && i.ProviderUserID == identity.ProviderUserID {
			return repository.ErrDuplicateIdentity
		}
		if i.AccountID == identity.AccountID && i.Provider == identity.Provider {
			return repository.ErrDuplicateIdentity
		}
	}

	if identity.ID == "" {
		identity.ID = uuid.New().String()
	}
	now := time.Now()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	clone := *identity
	r.identities[identity.ID] = &clone
	return nil
}

func (r *fakeIdentityRepo) GetByProvider(ctx context.Context, provider, providerUserID string) (*domain.FederatedIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, i := range r.identities {
		if i.Provider == provider && i.ProviderUserID == providerUserID {
			clone := *i
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeIdentityRepo) GetByAccountID(ctx context.Context, accountID string) ([]*domain.FederatedIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.FederatedIdentity
	for _, i := range r.identities {
		if i.AccountID == accountID {
			clone := *i
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeIdentityRepo) UpdateProfile(ctx context.Context, identityID string, email *string, profile json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.identities[identityID]
	if !ok {
		return repository.ErrNotFound
	}
	i.Email = email
	i.Profile = profile
	i.UpdatedAt = time.Now()
	return nil
}

func (r *fakeIdentityRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, i := range r.identities {
		if i.AccountID == accountID {
			delete(r.identities, id)
		}
	}
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.RefreshTokenHash == session.RefreshTokenHash {
			return repository.ErrDuplicateTokenHash
		}
	}

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *fakeSessionRepo) ListByAccountID(ctx context.Context, accountID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Session
	for _, s := range r.sessions {
		if s.AccountID == accountID {
			clone := *s
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeSessionRepo) RotateTokenHash(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, s := range r.sessions {
		if s.RefreshTokenHash == oldHash && s.RevokedAt == nil && s.ExpiresAt.After(now) {
			s.RotatedTokenHashes = append(s.RotatedTokenHashes, oldHash)
			s.RefreshTokenHash = newHash
			s.ExpiresAt = expiresAt
			s.LastUsedAt = &now
			clone := *s
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSessionRepo) RevokeByRotatedTokenHash(ctx context.Context, rotatedHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.RevokedAt != nil {
			continue
		}
		for _, h := range s.RotatedTokenHashes {
			if h == rotatedHash {
				now := time.Now()
				s.RevokedAt = &now
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *fakeSessionRepo) Revoke(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.RevokedAt == nil {
		now := time.Now()
		s.RevokedAt = &now
	}
	return nil
}

func (r *fakeSessionRepo) RevokeAllByAccountID(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, s := range r.sessions {
		if s.AccountID == accountID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

func (r *fakeSessionRepo) DeleteExpired(ctx context.Context, retention time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
	return nil
}

// fakeStateStore mirrors the Redis store's single-consumption contract.
type fakeStateStore struct {
	mu     sync.Mutex
	states map[string]string
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]string)}
}

func (s *fakeStateStore) Issue(ctx context.Context, provider string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := uuid.New().String()
	s.states[value] = provider
	return value, nil
}

func (s *fakeStateStore) Consume(ctx context.Context, value, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.states[value]
	if !ok {
		return ErrStateInvalid
	}
	delete(s.states, value)
	if stored != provider {
		return ErrStateInvalid
	}
	return nil
}
