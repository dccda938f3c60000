package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vividly/identity-service/internal/domain"
	"github.com/vividly/identity-service/pkg/database"
)

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *database.Postgres
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.Postgres) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, email, password_hash, first_name, last_name, avatar_url,
		is_active, is_email_verified, two_factor_enabled, created_at, updated_at, last_login_at`

// Create creates a new account in the database
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, first_name, last_name, avatar_url,
			is_active, is_email_verified, two_factor_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	// Generate UUID if not provided
	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		account.ID,
		account.Email,
		nullString(account.PasswordHash),
		account.FirstName,
		account.LastName,
		account.AvatarURL,
		account.IsActive,
		account.IsEmailVerified,
		account.TwoFactorEnabled,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		// Check for unique constraint violation (duplicate email)
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("account with email %s already exists: %w", account.Email, ErrDuplicateEmail)
			}
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByEmail retrieves an account by email
func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE email = $1`, accountColumns)

	account, err := r.scanAccount(r.db.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account with email %s not found: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return account, nil
}

// GetByID retrieves an account by ID
func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)

	account, err := r.scanAccount(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by id: %w", err)
	}

	return account, nil
}

// Update updates an existing account
func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET email = $2, password_hash = $3, first_name = $4, last_name = $5, avatar_url = $6,
			is_active = $7, is_email_verified = $8, two_factor_enabled = $9, updated_at = $10
		WHERE id = $1
	`

	account.UpdatedAt = time.Now()

	result, err := r.db.DB.ExecContext(ctx, query,
		account.ID,
		account.Email,
		nullString(account.PasswordHash),
		account.FirstName,
		account.LastName,
		account.AvatarURL,
		account.IsActive,
		account.IsEmailVerified,
		account.TwoFactorEnabled,
		account.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("account with email %s already exists: %w", account.Email, ErrDuplicateEmail)
			}
		}
		return fmt.Errorf("failed to update account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account with id %s not found: %w", account.ID, ErrNotFound)
	}

	return nil
}

// UpdateLastLogin updates the last login timestamp for an account
func (r *accountRepository) UpdateLastLogin(ctx context.Context, accountID string) error {
	query := `
		UPDATE accounts
		SET last_login_at = $1
		WHERE id = $2
	`

	result, err := r.db.DB.ExecContext(ctx, query, time.Now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account with id %s not found: %w", accountID, ErrNotFound)
	}

	return nil
}

func (r *accountRepository) scanAccount(row *sql.Row) (*domain.Account, error) {
	account := &domain.Account{}
	var passwordHash sql.NullString
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.Email,
		&passwordHash,
		&account.FirstName,
		&account.LastName,
		&account.AvatarURL,
		&account.IsActive,
		&account.IsEmailVerified,
		&account.TwoFactorEnabled,
		&account.CreatedAt,
		&account.UpdatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	if passwordHash.Valid {
		account.PasswordHash = passwordHash.String
	}
	if lastLoginAt.Valid {
		account.LastLoginAt = &lastLoginAt.Time
	}

	return account, nil
}

// nullString maps "" to NULL so federation-only accounts carry no hash.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
