package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vividly/identity-service/internal/domain"
	"github.com/vividly/identity-service/pkg/database"
)

// identityRepository implements IdentityRepository interface
type identityRepository struct {
	db *database.Postgres
}

// NewIdentityRepository creates a new federated identity repository
func NewIdentityRepository(db *database.Postgres) IdentityRepository {
	return &identityRepository{db: db}
}

// Create creates a new federated identity link
func (r *identityRepository) Create(ctx context.Context, identity *domain.FederatedIdentity) error {
	query := `
		INSERT INTO federated_identities (id, account_id, provider, provider_user_id, email, profile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	// Generate UUID if not provided
	if identity.ID == "" {
		identity.ID = uuid.New().String()
	}

	now := time.Now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	if identity.UpdatedAt.IsZero() {
		identity.UpdatedAt = now
	}

	profile := identity.Profile
	if profile == nil {
		profile = json.RawMessage("{}")
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		identity.ID,
		identity.AccountID,
		identity.Provider,
		identity.ProviderUserID,
		identity.Email,
		[]byte(profile),
		identity.CreatedAt,
		identity.UpdatedAt,
	)

	if err != nil {
		// Check for unique constraint violation (duplicate provider link)
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("identity %s/%s already linked: %w", identity.Provider, identity.ProviderUserID, ErrDuplicateIdentity)
			}
		}
		return fmt.Errorf("failed to create federated identity: %w", err)
	}

	return nil
}

// GetByProvider retrieves a federated identity by provider and provider user ID
func (r *identityRepository) GetByProvider(ctx context.Context, provider, providerUserID string) (*domain.FederatedIdentity, error) {
	query := `
		SELECT id, account_id, provider, provider_user_id, email, profile, created_at, updated_at
		FROM federated_identities
		WHERE provider = $1 AND provider_user_id = $2
	`

	identity := &domain.FederatedIdentity{}
	var email sql.NullString
	var profile []byte

	err := r.db.DB.QueryRowContext(ctx, query, provider, providerUserID).Scan(
		&identity.ID,
		&identity.AccountID,
		&identity.Provider,
		&identity.ProviderUserID,
		&email,
		&profile,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("federated identity not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get federated identity: %w", err)
	}

	if email.Valid {
		identity.Email = &email.String
	}
	identity.Profile = json.RawMessage(profile)

	return identity, nil
}

// GetByAccountID retrieves all federated identities linked to an account
func (r *identityRepository) GetByAccountID(ctx context.Context, accountID string) ([]*domain.FederatedIdentity, error) {
	query := `
		SELECT id, account_id, provider, provider_user_id, email, profile, created_at, updated_at
		FROM federated_identities
		WHERE account_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get identities by account id: %w", err)
	}
	defer rows.Close()

	var identities []*domain.FederatedIdentity
	for rows.Next() {
		identity := &domain.FederatedIdentity{}
		var email sql.NullString
		var profile []byte

		err := rows.Scan(
			&identity.ID,
			&identity.AccountID,
			&identity.Provider,
			&identity.ProviderUserID,
			&email,
			&profile,
			&identity.CreatedAt,
			&identity.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan federated identity: %w", err)
		}

		if email.Valid {
			identity.Email = &email.String
		}
		identity.Profile = json.RawMessage(profile)

		identities = append(identities, identity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate federated identities: %w", err)
	}

	return identities, nil
}

// UpdateProfile refreshes the cached profile snapshot of an identity
func (r *identityRepository) UpdateProfile(ctx context.Context, identityID string, email *string, profile json.RawMessage) error {
	query := `
		UPDATE federated_identities
		SET email = $2, profile = $3, updated_at = $4
		WHERE id = $1
	`

	if profile == nil {
		profile = json.RawMessage("{}")
	}

	result, err := r.db.DB.ExecContext(ctx, query, identityID, email, []byte(profile), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update identity profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("federated identity with id %s not found: %w", identityID, ErrNotFound)
	}

	return nil
}

// DeleteByAccountID removes every provider link of an account. Used when
// the account's email changes: links re-form only after the provider
// asserts the new address.
func (r *identityRepository) DeleteByAccountID(ctx context.Context, accountID string) error {
	query := `DELETE FROM federated_identities WHERE account_id = $1`

	_, err := r.db.DB.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete identities by account id: %w", err)
	}

	return nil
}
