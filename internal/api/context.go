// ABOUTME: Request context key types and constants for the api package.
// ABOUTME: Used by middleware to inject auth state and by handlers to read it.
package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/pulsehq/teampulse/internal/store"
)

type contextKey int

const (
	ctxUserID       contextKey = iota // uuid.UUID — authenticated user ID from the JWT
	ctxTokenVersion                   // int — token_version claim from the JWT
	ctxUser                           // *store.User — directory record, set by RBAC middleware
	ctxRole                           // rbac.Role — effective role for this request
)

// currentUserID returns the authenticated user ID from the request context.
func currentUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxUserID).(uuid.UUID)
	return id, ok
}

// currentTokenVersion returns the token_version claim injected by
// RequireAuthenticated.
func currentTokenVersion(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(ctxTokenVersion).(int)
	return v, ok
}

// currentUser returns the directory record injected by the RBAC middleware.
func currentUser(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(ctxUser).(*store.User)
	return u, ok
}
