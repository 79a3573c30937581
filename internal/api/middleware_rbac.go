// ABOUTME: RequirePermission and RequireRole middleware — load the directory
// ABOUTME: record and gate the request on the access-control evaluator's answer.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pulsehq/teampulse/internal/rbac"
	"github.com/pulsehq/teampulse/internal/store"
)

// rbacUser converts a directory record to the evaluator's input type.
// A nil record maps to a nil user, which the evaluator denies.
func rbacUser(u *store.User) *rbac.User {
	if u == nil {
		return nil
	}
	return &rbac.User{Email: u.Email, Role: u.Role, UserType: u.UserType}
}

// loadUser fetches the directory record for the authenticated user and
// injects it plus the effective role into the context. Returns nil and a
// written response on failure.
func (srv *Server) loadUser(w http.ResponseWriter, r *http.Request) (*store.User, *http.Request) {
	userID, ok := currentUserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, nil
	}
	user, err := srv.store.GetUserByID(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "rbac: load user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, nil
	}
	if user == nil {
		// Token outlived the account. Deny, don't 500.
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, nil
	}
	// A version bump (refresh-token reuse, logout-all) invalidates every
	// access token issued before it.
	if tv, ok := currentTokenVersion(r.Context()); !ok || tv != user.TokenVersion {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, nil
	}
	ctx := context.WithValue(r.Context(), ctxUser, user)
	ctx = context.WithValue(ctx, ctxRole, srv.eval.EffectiveRole(rbacUser(user)))
	return user, r.WithContext(ctx)
}

// RequirePermission returns a middleware that verifies the authenticated
// user's effective role holds perm. On success the directory record and
// effective role are available via ctxUser and ctxRole.
//
// Must run after RequireAuthenticated.
func (srv *Server) RequirePermission(perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, req := srv.loadUser(w, r)
			if user == nil {
				return
			}
			if !srv.eval.HasPermission(rbacUser(user), perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// RequireRole returns a middleware that verifies the authenticated user's
// effective role ranks at or above minRole.
//
// Must run after RequireAuthenticated.
func (srv *Server) RequireRole(minRole rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, req := srv.loadUser(w, r)
			if user == nil {
				return
			}
			if !srv.eval.HasRoleOrHigher(rbacUser(user), minRole) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// RequireUser returns a middleware that only loads the directory record —
// for routes open to every authenticated user, where handlers still need
// ctxUser for ownership checks.
func (srv *Server) RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, req := srv.loadUser(w, r)
			if user == nil {
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
