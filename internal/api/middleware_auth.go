// ABOUTME: RequireAuthenticated middleware for JWT access-token cookie auth.
// ABOUTME: Injects the authenticated user ID into the request context.
package api

import (
	"context"
	"net/http"

	"github.com/pulsehq/teampulse/internal/auth"
)

// RequireAuthenticated returns a middleware that requires a valid JWT
// access-token cookie. On success it injects ctxUserID and ctxTokenVersion
// into the request context. It does not touch the database — the RBAC
// middleware loads the directory record only on routes that need it.
func (srv *Server) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("access_token")
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseAccessToken(cookie.Value, []byte(srv.cfg.JWTSecret))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
			ctx = context.WithValue(ctx, ctxTokenVersion, claims.TokenVersion)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
