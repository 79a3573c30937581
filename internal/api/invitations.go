// ABOUTME: HTTP handlers for invitations: create, list, delete, and the
// ABOUTME: unauthenticated accept endpoint that provisions the invitee's account.
package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulsehq/teampulse/internal/auth"
	"github.com/pulsehq/teampulse/internal/rbac"
	"github.com/pulsehq/teampulse/internal/store"
)

// newInvitationToken returns a 256-bit URL-safe random token.
func newInvitationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// createInvitationBody is the JSON request body for POST /api/v1/invitations.
type createInvitationBody struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	UserType string `json:"user_type"`
}

// invitationResponseBody is the JSON shape for an invitation. The token is
// never echoed back — it only travels in the invitee's email.
type invitationResponseBody struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	InvitedRole string `json:"invited_role"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
}

func invitationResponse(inv *store.Invitation) invitationResponseBody {
	return invitationResponseBody{
		ID:          inv.ID.String(),
		Email:       inv.Email,
		InvitedRole: inv.InvitedRole,
		CreatedAt:   inv.CreatedAt.Format(time.RFC3339),
		ExpiresAt:   inv.ExpiresAt.Format(time.RFC3339),
	}
}

// createInvitationHandler handles POST /api/v1/invitations.
// Inviting at a role follows the same escalation rules as assigning it:
// an admin cannot invite another admin, and nobody invites an owner.
func (srv *Server) createInvitationHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createInvitationBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = "participant"
	}
	invitedRole := rbac.ParseRole(req.Role)
	if invitedRole == 0 {
		http.Error(w, "unknown role: "+req.Role, http.StatusBadRequest)
		return
	}
	if !srv.eval.CanAssignRole(rbacUser(actor), invitedRole) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	existing, err := srv.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.ErrorContext(r.Context(), "create invitation: lookup email", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "email already registered", http.StatusConflict)
		return
	}

	token, err := newInvitationToken()
	if err != nil {
		slog.ErrorContext(r.Context(), "create invitation: token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ttl := time.Duration(srv.cfg.InvitationTTLHours) * time.Hour
	inv, err := srv.store.CreateInvitation(r.Context(), req.Email, invitedRole.String(), token, actor.ID, time.Now().Add(ttl))
	if err != nil {
		slog.ErrorContext(r.Context(), "create invitation", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	detail, _ := json.Marshal(map[string]string{"email": inv.Email, "invited_role": inv.InvitedRole})
	if _, aerr := srv.store.CreateAuditEvent(r.Context(), actor.Email, store.AuditActionInvitationCreated, inv.ID.String(), detail); aerr != nil {
		slog.WarnContext(r.Context(), "create invitation: audit", "error", aerr)
	}
	if srv.mailer != nil {
		acceptURL := srv.cfg.ExternalURL + "/invitations/accept?token=" + token
		srv.mailer.EnqueueInvitation(inv.Email, actor.DisplayName, acceptURL)
	}

	writeJSON(w, http.StatusCreated, invitationResponse(inv))
}

// invitationListResponseBody is the JSON response body for GET /api/v1/invitations.
type invitationListResponseBody struct {
	Invitations []invitationResponseBody `json:"invitations"`
}

// listInvitationsHandler handles GET /api/v1/invitations.
// Returns pending (unaccepted, unexpired) invitations only.
func (srv *Server) listInvitationsHandler(w http.ResponseWriter, r *http.Request) {
	invs, err := srv.store.ListPendingInvitations(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "list invitations", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := invitationListResponseBody{Invitations: make([]invitationResponseBody, 0, len(invs))}
	for i := range invs {
		resp.Invitations = append(resp.Invitations, invitationResponse(&invs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// deleteInvitationHandler handles DELETE /api/v1/invitations/{id}.
func (srv *Server) deleteInvitationHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid invitation id", http.StatusBadRequest)
		return
	}

	if err := srv.store.DeleteInvitation(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "delete invitation", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if _, aerr := srv.store.CreateAuditEvent(r.Context(), actor.Email, store.AuditActionInvitationDeleted, id.String(), nil); aerr != nil {
		slog.WarnContext(r.Context(), "delete invitation: audit", "error", aerr)
	}
	w.WriteHeader(http.StatusNoContent)
}

// acceptInvitationBody is the JSON request body for POST /api/v1/invitations/accept.
type acceptInvitationBody struct {
	Token       string `json:"token"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// acceptInvitationResponseBody is the response for a successful accept.
type acceptInvitationResponseBody struct {
	UserID string `json:"user_id"`
}

// acceptInvitationHandler handles POST /api/v1/invitations/accept.
// Unauthenticated: the invitee proves possession of the emailed token.
// Expired, unknown, and already-accepted tokens all return the same 404
// so the endpoint cannot be used to probe invitation state.
func (srv *Server) acceptInvitationHandler(w http.ResponseWriter, r *http.Request) {
	var req acceptInvitationBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, "password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	inv, err := srv.store.GetInvitationByToken(r.Context(), req.Token)
	if err != nil {
		slog.ErrorContext(r.Context(), "accept invitation: lookup", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if inv == nil {
		http.Error(w, "invitation not found", http.StatusNotFound)
		return
	}

	// Hash before touching the invitation so a saturated hasher cannot burn
	// the token.
	if !srv.acquireArgon2() {
		http.Error(w, "server busy, please retry", http.StatusServiceUnavailable)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	srv.releaseArgon2()
	if err != nil {
		slog.ErrorContext(r.Context(), "accept invitation: hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Claim and account creation are one transaction: a failed insert leaves
	// the invitation claimable, a lost claim race leaves no account.
	dirRole, dirUserType := directoryFields(rbac.ParseRole(inv.InvitedRole))
	user, claimed, err := srv.store.AcceptInvitation(r.Context(), req.Token, displayNameOrLocalPart(req.DisplayName, inv.Email), hash, dirRole, dirUserType)
	if err != nil {
		if pgErrCode(err) == "23505" { // registered between invite and accept
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		slog.ErrorContext(r.Context(), "accept invitation", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !claimed {
		http.Error(w, "invitation not found", http.StatusNotFound)
		return
	}

	if _, aerr := srv.store.CreateAuditEvent(r.Context(), user.Email, store.AuditActionUserRegistered, user.ID.String(), json.RawMessage(`{"via":"invitation"}`)); aerr != nil {
		slog.WarnContext(r.Context(), "accept invitation: audit", "error", aerr)
	}

	writeJSON(w, http.StatusCreated, acceptInvitationResponseBody{UserID: user.ID.String()})
}
