// ABOUTME: Store methods for the user directory: creation, lookup, role
// ABOUTME: assignment, profile updates, points balance, and token versioning.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// User is a directory record. Role and UserType are the raw directory fields
// the rbac evaluator derives the effective role from; they are never
// interpreted here.
type User struct {
	ID            uuid.UUID
	Email         string
	DisplayName   string
	PasswordHash  sql.NullString
	Role          string
	UserType      string
	PointsBalance int64
	TokenVersion  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLoginAt   sql.NullTime
}

// userColumns is the scan order shared by all user queries.
const userColumns = "id, email, display_name, password_hash, role, user_type, points_balance, token_version, created_at, updated_at, last_login_at"

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&u.Role, &u.UserType, &u.PointsBalance, &u.TokenVersion,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user row. Pass an empty passwordHash for
// invitation-pending accounts.
func (s *Store) CreateUser(ctx context.Context, email, displayName, passwordHash, role, userType string) (*User, error) {
	if role == "" {
		role = "participant"
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, display_name, password_hash, role, user_type)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING `+userColumns,
		email, displayName, passwordHash, role, userType,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByID returns the user with the given ID, or (nil, nil) if not found.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email (case-insensitive),
// or (nil, nil) if not found.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// CountUsers returns the total number of users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// ListUsersParams are the optional filters for ListUsers.
type ListUsersParams struct {
	Role     string // directory role filter, e.g. "admin"
	UserType string // directory user_type filter, e.g. "facilitator"
	// Cursor: created_at/id of the last row on the previous page.
	AfterTime *time.Time
	AfterID   *uuid.UUID
	Limit     int
}

// ListUsers returns a page of users ordered by created_at DESC, id DESC.
// Callers pass Limit+1 to detect whether a next page exists.
func (s *Store) ListUsers(ctx context.Context, p ListUsersParams) ([]User, error) {
	sb := psql.
		Select(userColumns).
		From("users").
		OrderBy("created_at DESC, id DESC").
		Limit(uint64(p.Limit)) //nolint:gosec // G115: limit validated by caller

	if p.Role != "" {
		sb = sb.Where(sq.Eq{"role": p.Role})
	}
	if p.UserType != "" {
		sb = sb.Where(sq.Eq{"user_type": p.UserType})
	}
	if p.AfterTime != nil && p.AfterID != nil {
		sb = sb.Where("(created_at, id) < (?, ?)", *p.AfterTime, *p.AfterID)
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list users: build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: scan: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateUserRole sets the directory role and user_type fields. Returns
// (nil, nil) if the user does not exist.
func (s *Store) UpdateUserRole(ctx context.Context, id uuid.UUID, role, userType string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users SET role = $2, user_type = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, role, userType,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update user role: %w", err)
	}
	return u, nil
}

// UpdateUserProfile sets the display name. Returns (nil, nil) if not found.
func (s *Store) UpdateUserProfile(ctx context.Context, id uuid.UUID, displayName string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users SET display_name = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, displayName,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return u, nil
}

// UpdateLastLogin sets last_login_at to now for the given user.
func (s *Store) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// IncrementTokenVersion increments token_version and returns the new value.
// Used by logout-all to immediately invalidate all outstanding refresh tokens.
func (s *Store) IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET token_version = token_version + 1, updated_at = now()
		WHERE id = $1
		RETURNING token_version`, id,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("increment token version: %w", err)
	}
	return v, nil
}
