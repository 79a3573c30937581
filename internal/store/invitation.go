// ABOUTME: Store methods for user invitations: create, lookup by token, accept.
// ABOUTME: Invitations carry the role the invitee will receive on acceptance.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Invitation is a pending or accepted invitation record.
type Invitation struct {
	ID          uuid.UUID
	Email       string
	InvitedRole string
	Token       string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	ExpiresAt   time.Time
	AcceptedAt  sql.NullTime
}

const invitationColumns = "id, email, invited_role, token, created_by, created_at, expires_at, accepted_at"

func scanInvitation(row interface{ Scan(...any) error }) (*Invitation, error) {
	var inv Invitation
	err := row.Scan(
		&inv.ID, &inv.Email, &inv.InvitedRole, &inv.Token,
		&inv.CreatedBy, &inv.CreatedAt, &inv.ExpiresAt, &inv.AcceptedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateInvitation inserts an invitation record and returns it.
func (s *Store) CreateInvitation(ctx context.Context, email, invitedRole, token string, createdBy uuid.UUID, expiresAt time.Time) (*Invitation, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO invitations (email, invited_role, token, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+invitationColumns,
		email, invitedRole, token, createdBy, expiresAt,
	)
	inv, err := scanInvitation(row)
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	return inv, nil
}

// GetInvitationByToken returns the invitation with the given token, or
// (nil, nil) if unknown.
func (s *Store) GetInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token)
	inv, err := scanInvitation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

// ListPendingInvitations returns unaccepted, unexpired invitations ordered by
// creation time.
func (s *Store) ListPendingInvitations(ctx context.Context) ([]Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invitationColumns+` FROM invitations
		WHERE accepted_at IS NULL AND expires_at > now()
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending invitations: scan: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// AcceptInvitation claims the invitation and creates the invitee's account in
// one transaction. A failed account insert rolls the claim back, so the
// invitee can retry with the same token. Returns claimed=false if the token
// is unknown, expired, or already accepted.
func (s *Store) AcceptInvitation(ctx context.Context, token, displayName, passwordHash, role, userType string) (*User, bool, error) {
	if role == "" {
		role = "participant"
	}
	var (
		user    *User
		claimed bool
	)
	err := s.withPgxTx(ctx, func(tx pgx.Tx) error {
		var email string
		err := tx.QueryRow(ctx, `
			UPDATE invitations SET accepted_at = now()
			WHERE token = $1 AND accepted_at IS NULL AND expires_at > now()
			RETURNING email`, token,
		).Scan(&email)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim invitation: %w", err)
		}
		claimed = true

		row := tx.QueryRow(ctx, `
			INSERT INTO users (email, display_name, password_hash, role, user_type)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5)
			RETURNING `+userColumns,
			email, displayName, passwordHash, role, userType,
		)
		u, err := scanUser(row)
		if err != nil {
			return fmt.Errorf("create invited user: %w", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("accept invitation: %w", err)
	}
	return user, claimed, nil
}

// DeleteExpiredInvitations removes unaccepted invitations past their expiry.
// Returns the number of rows deleted. Accepted rows are kept as a record of
// how the account was provisioned.
func (s *Store) DeleteExpiredInvitations(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM invitations WHERE accepted_at IS NULL AND expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired invitations: %w", err)
	}
	n, _ := res.RowsAffected() //nolint:errcheck
	return n, nil
}

// DeleteInvitation removes an invitation by ID. Unknown IDs are a no-op.
func (s *Store) DeleteInvitation(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	return nil
}
