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

// sessionRepository implements SessionRepository interface
type sessionRepository struct {
	db *database.Postgres
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.Postgres) SessionRepository {
	return &sessionRepository{db: db}
}

const sessionColumns = `id, account_id, refresh_token_hash, rotated_token_hashes, ip_address,
		user_agent, created_at, expires_at, last_used_at, revoked_at`

// Create creates a new session in the database
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, account_id, refresh_token_hash, ip_address, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// Generate UUID if not provided
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		session.ID,
		session.AccountID,
		session.RefreshTokenHash,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
		session.ExpiresAt,
	)

	if err != nil {
		// Check for unique constraint violation (duplicate token hash)
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("session with token hash already exists: %w", ErrDuplicateTokenHash)
			}
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID
func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)

	session, err := scanSession(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session by id: %w", err)
	}

	return session, nil
}

// ListByAccountID retrieves all sessions for an account, most recent first
func (r *sessionRepository) ListByAccountID(ctx context.Context, accountID string) ([]*domain.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, sessionColumns)

	rows, err := r.db.DB.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions by account id: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// RotateTokenHash replaces the refresh token hash of the live session
// holding oldHash in a single conditional update. The old hash is
// appended to rotated_token_hashes so reuse of any retired generation
// stays detectable. Returns ErrNotFound when no live session holds
// oldHash; of N concurrent rotations with the same token, exactly one
// receives the row.
func (r *sessionRepository) RotateTokenHash(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*domain.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET refresh_token_hash = $2,
		    rotated_token_hashes = array_append(rotated_token_hashes, $1),
		    expires_at = $3, last_used_at = $4
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > $4
		RETURNING %s
	`, sessionColumns)

	session, err := scanSession(r.db.DB.QueryRowContext(ctx, query, oldHash, newHash, expiresAt, time.Now()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no live session for token hash: %w", ErrNotFound)
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, fmt.Errorf("session with token hash already exists: %w", ErrDuplicateTokenHash)
		}
		return nil, fmt.Errorf("failed to rotate token hash: %w", err)
	}

	return session, nil
}

// RevokeByRotatedTokenHash revokes the session whose rotation lineage
// contains the given hash. A hit means an already-rotated token was
// presented again, however many rotations ago it was retired.
func (r *sessionRepository) RevokeByRotatedTokenHash(ctx context.Context, rotatedHash string) (bool, error) {
	query := `
		UPDATE sessions
		SET revoked_at = $2
		WHERE $1 = ANY(rotated_token_hashes) AND revoked_at IS NULL
	`

	result, err := r.db.DB.ExecContext(ctx, query, rotatedHash, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to revoke session by rotated token hash: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Revoke revokes a single session
func (r *sessionRepository) Revoke(ctx context.Context, sessionID string) error {
	query := `
		UPDATE sessions
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	result, err := r.db.DB.ExecContext(ctx, query, sessionID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session with id %s not found or already revoked: %w", sessionID, ErrNotFound)
	}

	return nil
}

// RevokeAllByAccountID revokes every unrevoked session of an account in
// one statement, including sessions rotated moments before the sweep.
func (r *sessionRepository) RevokeAllByAccountID(ctx context.Context, accountID string) error {
	query := `
		UPDATE sessions
		SET revoked_at = $2
		WHERE account_id = $1 AND revoked_at IS NULL
	`

	_, err := r.db.DB.ExecContext(ctx, query, accountID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to revoke sessions by account id: %w", err)
	}

	return nil
}

// DeleteExpired deletes sessions past expiry plus the retention window
func (r *sessionRepository) DeleteExpired(ctx context.Context, retention time.Duration) error {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	_, err := r.db.DB.ExecContext(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	session := &domain.Session{}
	var ipAddress, userAgent sql.NullString
	var lastUsedAt, revokedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.AccountID,
		&session.RefreshTokenHash,
		(*pq.StringArray)(&session.RotatedTokenHashes),
		&ipAddress,
		&userAgent,
		&session.CreatedAt,
		&session.ExpiresAt,
		&lastUsedAt,
		&revokedAt,
	)
	if err != nil {
		return nil, err
	}

	if ipAddress.Valid {
		session.IPAddress = &ipAddress.String
	}
	if userAgent.Valid {
		session.UserAgent = &userAgent.String
	}
	if lastUsedAt.Valid {
		session.LastUsedAt = &lastUsedAt.Time
	}
	if revokedAt.Valid {
		session.RevokedAt = &revokedAt.Time
	}

	return session, nil
}
