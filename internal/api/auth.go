// ABOUTME: HTTP handlers for authentication: register, login, refresh, logout, me.
// ABOUTME: All auth endpoints live at /api/v1/auth/... and are rate-limited.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pulsehq/teampulse/internal/auth"
	"github.com/pulsehq/teampulse/internal/store"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	// dummyPasswordHash is a valid PHC-format argon2id hash used for login
	// timing normalization. Running VerifyPassword against it for nonexistent
	// users prevents email enumeration via response-time differences.
	dummyPasswordHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA" //nolint:gosec // G101 false positive: public dummy hash, not a credential
)

// pgErrCode extracts the Postgres error code from err, or "" if err is not a pg error.
func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// authCookies returns Set-Cookie header values for the access and refresh tokens.
// refresh_token is scoped to /api/v1/auth to limit its transmission surface.
func authCookies(accessToken, refreshToken string, secure bool) []string {
	access := &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(accessTokenTTL.Seconds()),
	}
	refresh := &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/api/v1/auth",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(refreshTokenTTL.Seconds()),
	}
	return []string{access.String(), refresh.String()}
}

// clearAuthCookies returns Set-Cookie headers that immediately expire both auth cookies.
func clearAuthCookies(secure bool) []string {
	access := &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
	refresh := &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/api/v1/auth",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
	return []string{access.String(), refresh.String()}
}

// ── Register ──────────────────────────────────────────────────────────────────

// registerInput is the request body for POST /auth/register.
type registerInput struct {
	Body struct {
		Email       string `json:"email"        format:"email" maxLength:"254"  doc:"User email address"`
		Password    string `json:"password"     minLength:"8"  maxLength:"1024" doc:"Password (min 8 characters)"`
		DisplayName string `json:"display_name,omitempty"       doc:"Display name (optional)"`
	}
}

// registerOutput is the response body for POST /auth/register.
type registerOutput struct {
	Status int
	Body   struct {
		UserID string `json:"user_id"`
	}
}

// registerHandler handles POST /api/v1/auth/register.
// New accounts always start as participants; elevation happens only through
// the role-assignment endpoint or the owner allowlist.
func (srv *Server) registerHandler(ctx context.Context, input *registerInput) (*registerOutput, error) {
	if srv.cfg.RegistrationMode != "open" {
		return nil, huma.Error403Forbidden("registration is invitation-only on this server")
	}

	// Reject duplicate email before the expensive hash.
	existing, err := srv.store.GetUserByEmail(ctx, input.Body.Email)
	if err != nil {
		slog.ErrorContext(ctx, "register: lookup email", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if existing != nil {
		return nil, huma.Error409Conflict("email already registered")
	}

	if !srv.acquireArgon2() {
		return nil, huma.Error503ServiceUnavailable("server busy, please retry")
	}
	hash, err := auth.HashPassword(input.Body.Password)
	srv.releaseArgon2()
	if err != nil {
		slog.ErrorContext(ctx, "register: hash password", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	user, err := srv.store.CreateUser(ctx, input.Body.Email, displayNameOrLocalPart(input.Body.DisplayName, input.Body.Email), hash, "participant", "")
	if err != nil {
		if pgErrCode(err) == "23505" { // unique_violation — race on concurrent register
			return nil, huma.Error409Conflict("email already registered")
		}
		slog.ErrorContext(ctx, "register: create user", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	if _, err := srv.store.CreateAuditEvent(ctx, user.Email, store.AuditActionUserRegistered, user.ID.String(), nil); err != nil {
		slog.WarnContext(ctx, "register: audit event", "error", err)
	}

	out := &registerOutput{Status: http.StatusCreated}
	out.Body.UserID = user.ID.String()
	return out, nil
}

// displayNameOrLocalPart falls back to the email local-part when name is empty.
func displayNameOrLocalPart(name, email string) string {
	if name != "" {
		return name
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// ── Login ─────────────────────────────────────────────────────────────────────

// loginInput is the request body for POST /auth/login.
type loginInput struct {
	Body struct {
		Email    string `json:"email"    format:"email" maxLength:"254"  doc:"User email"`
		Password string `json:"password" minLength:"8"  maxLength:"1024" doc:"Password"`
	}
}

// loginOutput returns auth cookies (no JSON body needed).
type loginOutput struct {
	SetCookie []string `header:"Set-Cookie"`
}

// loginHandler handles POST /api/v1/auth/login.
// Nonexistent users still run argon2 to normalize response timing.
func (srv *Server) loginHandler(ctx context.Context, input *loginInput) (*loginOutput, error) {
	user, err := srv.store.GetUserByEmail(ctx, input.Body.Email)
	if err != nil {
		slog.ErrorContext(ctx, "login: lookup email", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	if user == nil || !user.PasswordHash.Valid {
		if !srv.acquireArgon2() {
			return nil, huma.Error503ServiceUnavailable("server busy, please retry")
		}
		_, _ = auth.VerifyPassword(input.Body.Password, dummyPasswordHash)
		srv.releaseArgon2()
		return nil, huma.Error401Unauthorized("invalid credentials")
	}

	if !srv.acquireArgon2() {
		return nil, huma.Error503ServiceUnavailable("server busy, please retry")
	}
	ok, err := auth.VerifyPassword(input.Body.Password, user.PasswordHash.String)
	srv.releaseArgon2()
	if err != nil {
		slog.ErrorContext(ctx, "login: verify password", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if !ok {
		return nil, huma.Error401Unauthorized("invalid credentials")
	}

	cookies, err := srv.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	// Non-fatal — last_login_at is informational only.
	if err := srv.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.WarnContext(ctx, "login: update last login", "error", err)
	}

	return &loginOutput{SetCookie: cookies}, nil
}

// issueTokenPair issues a new access + refresh JWT pair and persists the
// refresh token. Returns the Set-Cookie values.
func (srv *Server) issueTokenPair(ctx context.Context, user *store.User) ([]string, error) {
	secret := []byte(srv.cfg.JWTSecret)
	jti := uuid.New()
	accessToken, err := auth.IssueAccessToken(secret, user.ID, user.TokenVersion, accessTokenTTL)
	if err != nil {
		slog.ErrorContext(ctx, "issue access token", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	refreshToken, err := auth.IssueRefreshToken(secret, user.ID, user.TokenVersion, jti, refreshTokenTTL)
	if err != nil {
		slog.ErrorContext(ctx, "issue refresh token", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if err := srv.store.CreateRefreshToken(ctx, jti, user.ID, user.TokenVersion, time.Now().Add(refreshTokenTTL)); err != nil {
		slog.ErrorContext(ctx, "persist refresh token", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	return authCookies(accessToken, refreshToken, srv.cfg.CookieSecure), nil
}

// ── Refresh ───────────────────────────────────────────────────────────────────

// refreshInput reads the refresh_token cookie.
type refreshInput struct {
	RefreshToken string `cookie:"refresh_token" doc:"Refresh token cookie"`
}

// refreshOutput returns new auth cookies.
type refreshOutput struct {
	SetCookie []string `header:"Set-Cookie"`
}

// refreshHandler handles POST /api/v1/auth/refresh.
// Rotates the refresh token: the old JTI is revoked and a new pair issued.
// Reuse of a revoked token is treated as theft and invalidates all sessions.
func (srv *Server) refreshHandler(ctx context.Context, input *refreshInput) (*refreshOutput, error) {
	if input.RefreshToken == "" {
		return nil, huma.Error401Unauthorized("refresh token required")
	}

	claims, err := auth.ParseRefreshToken(input.RefreshToken, []byte(srv.cfg.JWTSecret))
	if err != nil {
		return nil, huma.Error401Unauthorized("invalid or expired refresh token")
	}

	stored, err := srv.store.GetRefreshToken(ctx, claims.JTI)
	if err != nil {
		slog.ErrorContext(ctx, "refresh: get token", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if stored == nil {
		return nil, huma.Error401Unauthorized("unknown refresh token")
	}

	if stored.RevokedAt.Valid {
		// Reuse of a rotated-out token: assume theft, kill every session.
		if _, incrErr := srv.store.IncrementTokenVersion(ctx, stored.UserID); incrErr != nil {
			slog.ErrorContext(ctx, "refresh: increment token version on reuse", "error", incrErr)
		}
		if revErr := srv.store.RevokeAllRefreshTokens(ctx, stored.UserID); revErr != nil {
			slog.ErrorContext(ctx, "refresh: revoke all on reuse", "error", revErr)
		}
		return nil, huma.Error401Unauthorized("refresh token already used")
	}

	user, err := srv.store.GetUserByID(ctx, stored.UserID)
	if err != nil || user == nil {
		slog.ErrorContext(ctx, "refresh: get user", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	// Version check detects logout-all and password changes.
	if user.TokenVersion != stored.TokenVersion {
		return nil, huma.Error401Unauthorized("session invalidated")
	}

	if err := srv.store.RevokeRefreshToken(ctx, stored.JTI); err != nil {
		slog.ErrorContext(ctx, "refresh: revoke old token", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	cookies, err := srv.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &refreshOutput{SetCookie: cookies}, nil
}

// ── Logout ────────────────────────────────────────────────────────────────────

// logoutInput reads the refresh_token cookie for invalidation.
type logoutInput struct {
	RefreshToken string `cookie:"refresh_token" doc:"Refresh token cookie"`
}

// logoutOutput clears auth cookies.
type logoutOutput struct {
	SetCookie []string `header:"Set-Cookie"`
}

// logoutHandler handles POST /api/v1/auth/logout.
// Revokes the refresh token and clears auth cookies.
func (srv *Server) logoutHandler(ctx context.Context, input *logoutInput) (*logoutOutput, error) {
	if input.RefreshToken != "" {
		claims, err := auth.ParseRefreshToken(input.RefreshToken, []byte(srv.cfg.JWTSecret))
		if err == nil {
			if err := srv.store.RevokeRefreshToken(ctx, claims.JTI); err != nil {
				// Non-fatal — cookies are cleared regardless.
				slog.WarnContext(ctx, "logout: revoke token", "error", err)
			}
		}
	}
	return &logoutOutput{SetCookie: clearAuthCookies(srv.cfg.CookieSecure)}, nil
}

// ── Me ────────────────────────────────────────────────────────────────────────

// meInput reads the access_token cookie for authentication.
type meInput struct {
	AccessToken string `cookie:"access_token" doc:"Access token cookie"`
}

// meOutput is the response body for GET /auth/me.
type meOutput struct {
	Body struct {
		UserID        string `json:"user_id"`
		Email         string `json:"email"`
		DisplayName   string `json:"display_name"`
		EffectiveRole string `json:"effective_role"`
		DisplayRole   string `json:"display_role"`
		PointsBalance int64  `json:"points_balance"`
	}
}

// meHandler handles GET /api/v1/auth/me. The effective role is derived by the
// evaluator, not read from a column — owners look like ordinary participants
// in the directory.
func (srv *Server) meHandler(ctx context.Context, input *meInput) (*meOutput, error) {
	if input.AccessToken == "" {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	claims, err := auth.ParseAccessToken(input.AccessToken, []byte(srv.cfg.JWTSecret))
	if err != nil {
		return nil, huma.Error401Unauthorized("invalid or expired access token")
	}

	user, err := srv.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "me: get user", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}
	if user == nil || user.TokenVersion != claims.TokenVersion {
		return nil, huma.Error401Unauthorized("session invalidated")
	}

	ru := rbacUser(user)
	out := &meOutput{}
	out.Body.UserID = user.ID.String()
	out.Body.Email = user.Email
	out.Body.DisplayName = user.DisplayName
	out.Body.EffectiveRole = srv.eval.EffectiveRole(ru).String()
	out.Body.DisplayRole = srv.eval.DisplayRole(ru)
	out.Body.PointsBalance = user.PointsBalance
	return out, nil
}

// registerAuthRoutes registers all auth-related routes on the huma API.
func registerAuthRoutes(api huma.API, srv *Server) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Tags:          []string{"auth"},
		Summary:       "Register a new user account",
		DefaultStatus: http.StatusCreated,
	}, srv.registerHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "login",
		Method:        http.MethodPost,
		Path:          "/auth/login",
		Tags:          []string{"auth"},
		Summary:       "Log in and receive auth cookies",
		DefaultStatus: http.StatusOK,
	}, srv.loginHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "refresh-token",
		Method:        http.MethodPost,
		Path:          "/auth/refresh",
		Tags:          []string{"auth"},
		Summary:       "Rotate the refresh token and issue a new access token",
		DefaultStatus: http.StatusOK,
	}, srv.refreshHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/auth/logout",
		Tags:          []string{"auth"},
		Summary:       "Log out and clear auth cookies",
		DefaultStatus: http.StatusOK,
	}, srv.logoutHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Tags:        []string{"auth"},
		Summary:     "Get the current user's profile and effective role",
	}, srv.meHandler)
}
