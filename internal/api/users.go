// ABOUTME: HTTP handlers for the user directory: list, get, role assignment,
// ABOUTME: profile updates. Role assignment is the only write path for roles.
package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulsehq/teampulse/internal/rbac"
	"github.com/pulsehq/teampulse/internal/store"
)

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON: encode failed", "error", err)
	}
}

// listCursor is the internal JSON structure encoded in the opaque cursor
// string shared by the paginated list endpoints.
type listCursor struct {
	// Time is the created_at of the last row, encoded as RFC3339Nano.
	Time string `json:"t"`
	// ID is the id of the last row.
	ID string `json:"id"`
}

// encodeCursor base64-encodes the cursor JSON (opaque to API clients).
func encodeCursor(t time.Time, id uuid.UUID) string {
	c := listCursor{Time: t.UTC().Format(time.RFC3339Nano), ID: id.String()}
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeCursor base64-decodes the opaque cursor, returning the row position
// or nils when s is empty.
func decodeCursor(s string) (*time.Time, *uuid.UUID, error) {
	if s == "" {
		return nil, nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cursor (base64): %w", err)
	}
	var c listCursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, nil, fmt.Errorf("invalid cursor (json): %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, c.Time)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cursor (time): %w", err)
	}
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cursor (id): %w", err)
	}
	return &t, &id, nil
}

// parseLimit parses the limit query param, clamped to [1, max]. Zero or
// missing yields def.
func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// userResponseBody is the JSON shape for a directory entry. Sensitive fields
// are pointers so redacted entries omit them entirely.
type userResponseBody struct {
	UserID        string  `json:"user_id"`
	DisplayName   string  `json:"display_name"`
	DisplayRole   string  `json:"display_role"`
	Email         *string `json:"email,omitempty"`
	Role          *string `json:"role,omitempty"`
	UserType      *string `json:"user_type,omitempty"`
	PointsBalance *int64  `json:"points_balance,omitempty"`
	CreatedAt     *string `json:"created_at,omitempty"`
	LastLoginAt   *string `json:"last_login_at,omitempty"`
}

// userResponse builds the directory entry for u as seen by viewer. Directory
// internals (email, raw role fields, timestamps) are included only when the
// viewer holds the view-all-users permission or is looking at themselves.
func (srv *Server) userResponse(viewer *store.User, u *store.User) userResponseBody {
	resp := userResponseBody{
		UserID:      u.ID.String(),
		DisplayName: u.DisplayName,
		DisplayRole: srv.eval.DisplayRole(rbacUser(u)),
	}
	full := srv.eval.CanAccessUserResource(rbacUser(viewer), u.Email)
	if !full {
		return resp
	}
	resp.Email = &u.Email
	resp.Role = &u.Role
	resp.UserType = &u.UserType
	resp.PointsBalance = &u.PointsBalance
	createdAt := u.CreatedAt.Format(time.RFC3339)
	resp.CreatedAt = &createdAt
	if u.LastLoginAt.Valid {
		lastLogin := u.LastLoginAt.Time.Format(time.RFC3339)
		resp.LastLoginAt = &lastLogin
	}
	return resp
}

// userListResponseBody is the JSON response body for GET /api/v1/users.
type userListResponseBody struct {
	Users      []userResponseBody `json:"users"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// listUsersHandler handles GET /api/v1/users.
// Open to every authenticated user; entries are redacted per viewer.
func (srv *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	viewer, ok := currentUser(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	afterTime, afterID, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		http.Error(w, "invalid cursor", http.StatusBadRequest)
		return
	}
	limit := parseLimit(r, 50, 200)

	users, err := srv.store.ListUsers(r.Context(), store.ListUsersParams{
		Role:      r.URL.Query().Get("role"),
		UserType:  r.URL.Query().Get("user_type"),
		AfterTime: afterTime,
		AfterID:   afterID,
		Limit:     limit + 1, // fetch one extra to detect next page
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "list users", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := userListResponseBody{Users: make([]userResponseBody, 0, len(users))}
	if len(users) > limit {
		users = users[:limit]
		last := users[len(users)-1]
		resp.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	for i := range users {
		resp.Users = append(resp.Users, srv.userResponse(viewer, &users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// getUserHandler handles GET /api/v1/users/{user_id}.
func (srv *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	viewer, ok := currentUser(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	user, err := srv.store.GetUserByID(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "get user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, srv.userResponse(viewer, user))
}

// assignRoleBody is the JSON request body for PUT /api/v1/users/{user_id}/role.
type assignRoleBody struct {
	Role string `json:"role"`
}

// directoryFields maps a granted role onto the two directory columns the
// evaluator reads: "admin" lives in role, "facilitator" in user_type.
// Granting participant clears both elevations.
func directoryFields(target rbac.Role) (role, userType string) {
	switch target {
	case rbac.RoleAdmin:
		return "admin", ""
	case rbac.RoleFacilitator:
		return "participant", "facilitator"
	default:
		return "participant", ""
	}
}

// assignRoleHandler handles PUT /api/v1/users/{user_id}/role.
// The evaluator decides whether the actor may grant the requested role;
// denied attempts are audited alongside successful ones.
func (srv *Server) assignRoleHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	targetID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var req assignRoleBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	newRole := rbac.ParseRole(req.Role)
	if newRole == 0 {
		http.Error(w, "unknown role: "+req.Role, http.StatusBadRequest)
		return
	}

	if !srv.eval.CanAssignRole(rbacUser(actor), newRole) {
		detail, _ := json.Marshal(map[string]string{"requested_role": newRole.String(), "target": targetID.String()})
		if _, aerr := srv.store.CreateAuditEvent(r.Context(), actor.Email, store.AuditActionRoleAssignDenied, targetID.String(), detail); aerr != nil {
			slog.WarnContext(r.Context(), "assign role: audit denial", "error", aerr)
		}
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	target, err := srv.store.GetUserByID(r.Context(), targetID)
	if err != nil {
		slog.ErrorContext(r.Context(), "assign role: get target", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if target == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	dirRole, dirUserType := directoryFields(newRole)
	updated, err := srv.store.UpdateUserRole(r.Context(), targetID, dirRole, dirUserType)
	if err != nil || updated == nil {
		slog.ErrorContext(r.Context(), "assign role: update", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	detail, _ := json.Marshal(map[string]string{
		"old_role": target.Role, "new_role": updated.Role,
		"old_user_type": target.UserType, "new_user_type": updated.UserType,
	})
	if _, aerr := srv.store.CreateAuditEvent(r.Context(), actor.Email, store.AuditActionRoleAssigned, updated.ID.String(), detail); aerr != nil {
		slog.WarnContext(r.Context(), "assign role: audit", "error", aerr)
	}
	if srv.mailer != nil && (updated.Role != target.Role || updated.UserType != target.UserType) {
		srv.mailer.EnqueueRoleChange(updated.Email, srv.eval.DisplayRole(rbacUser(updated)), actor.Email)
	}

	writeJSON(w, http.StatusOK, srv.userResponse(actor, updated))
}

// updateProfileBody is the JSON request body for PATCH /api/v1/users/me.
type updateProfileBody struct {
	DisplayName string `json:"display_name"`
}

// updateProfileHandler handles PATCH /api/v1/users/me.
// Users may only edit their own profile; role fields are never writable here.
func (srv *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateProfileBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.DisplayName == "" {
		http.Error(w, "display_name is required", http.StatusBadRequest)
		return
	}
	if len(req.DisplayName) > 100 {
		http.Error(w, "display_name too long", http.StatusBadRequest)
		return
	}

	updated, err := srv.store.UpdateUserProfile(r.Context(), user.ID, req.DisplayName)
	if err != nil || updated == nil {
		slog.ErrorContext(r.Context(), "update profile", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, srv.userResponse(updated, updated))
}
