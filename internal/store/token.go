// ABOUTME: Store methods for refresh-token persistence and rotation.
// ABOUTME: Tokens are keyed by JTI; revocation is a soft flag so reuse is detectable.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted refresh-token record.
type RefreshToken struct {
	JTI          uuid.UUID
	UserID       uuid.UUID
	TokenVersion int
	ExpiresAt    time.Time
	RevokedAt    sql.NullTime
	CreatedAt    time.Time
}

// CreateRefreshToken persists a newly issued refresh token.
func (s *Store) CreateRefreshToken(ctx context.Context, jti, userID uuid.UUID, tokenVersion int, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (jti, user_id, token_version, expires_at)
		VALUES ($1, $2, $3, $4)`,
		jti, userID, tokenVersion, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken returns the token with the given JTI, or (nil, nil) if unknown.
func (s *Store) GetRefreshToken(ctx context.Context, jti uuid.UUID) (*RefreshToken, error) {
	var t RefreshToken
	err := s.db.QueryRowContext(ctx, `
		SELECT jti, user_id, token_version, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE jti = $1`, jti,
	).Scan(&t.JTI, &t.UserID, &t.TokenVersion, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &t, nil
}

// RevokeRefreshToken marks the token revoked. Revoking an already revoked or
// unknown token is a no-op.
func (s *Store) RevokeRefreshToken(ctx context.Context, jti uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE jti = $1 AND revoked_at IS NULL`, jti,
	)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens removes tokens past their expiry. Returns the
// number of rows deleted. Revoked rows are kept until expiry so reuse of a
// rotated-out token is still detectable.
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	n, _ := res.RowsAffected() //nolint:errcheck
	return n, nil
}

// RevokeAllRefreshTokens revokes every live token for the user.
func (s *Store) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL`, userID,
	)
	if err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return nil
}
