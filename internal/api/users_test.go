// ABOUTME: Integration tests for the user directory API: listing redaction,
// ABOUTME: role assignment escalation rules, audit writes, profile updates.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulsehq/teampulse/internal/store"
	"github.com/pulsehq/teampulse/internal/testutil"
)

// newAPITestServer starts the full srv.Handler() stack over db.
func newAPITestServer(t *testing.T, db *testutil.TestDB, ownerEmails string) (*Server, *httptest.Server) {
	t.Helper()
	srv := newTestServer(t, db, ownerEmails)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

// doJSON sends method+path with an optional JSON body and auth cookie.
func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequestWithContext(context.Background(), method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestListUsers_RedactsForParticipants(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	participant := db.SeedUser(t, "emp@example.com", "participant", "")
	db.SeedUser(t, "peer@example.com", "participant", "")
	_, ts := newAPITestServer(t, db, "")

	resp := doJSON(t, ts, http.MethodGet, "/api/v1/users", nil, accessCookie(t, participant.ID, participant.TokenVersion))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list users: got %d, want 200", resp.StatusCode)
	}
	body := decodeBody[userListResponseBody](t, resp)
	if len(body.Users) != 2 {
		t.Fatalf("len(users) = %d, want 2", len(body.Users))
	}
	for _, u := range body.Users {
		if u.UserID == participant.ID.String() {
			// Self entry keeps full detail.
			if u.Email == nil || *u.Email != "emp@example.com" {
				t.Error("own entry should include email")
			}
			continue
		}
		if u.Email != nil || u.Role != nil || u.PointsBalance != nil {
			t.Errorf("peer entry leaked directory internals: %+v", u)
		}
		if u.DisplayName == "" || u.DisplayRole == "" {
			t.Errorf("peer entry missing public fields: %+v", u)
		}
	}
}

func TestListUsers_FullDetailForAdmins(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	admin := db.SeedUser(t, "admin@example.com", "admin", "")
	db.SeedUser(t, "emp@example.com", "participant", "")
	_, ts := newAPITestServer(t, db, "")

	resp := doJSON(t, ts, http.MethodGet, "/api/v1/users", nil, accessCookie(t, admin.ID, admin.TokenVersion))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list users: got %d, want 200", resp.StatusCode)
	}
	body := decodeBody[userListResponseBody](t, resp)
	for _, u := range body.Users {
		if u.Email == nil || u.Role == nil {
			t.Errorf("admin view should include directory internals: %+v", u)
		}
	}
}

func TestAssignRole_AdminCannotMintAdmin(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	admin := db.SeedUser(t, "admin@example.com", "admin", "")
	target := db.SeedUser(t, "emp@example.com", "participant", "")
	_, ts := newAPITestServer(t, db, "")

	resp := doJSON(t, ts, http.MethodPut, "/api/v1/users/"+target.ID.String()+"/role",
		assignRoleBody{Role: "admin"}, accessCookie(t, admin.ID, admin.TokenVersion))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin granting admin: got %d, want 403", resp.StatusCode)
	}

	// Denial is audited.
	events, err := db.ListAuditEvents(ctx, store.ListAuditEventsParams{
		Action: store.AuditActionRoleAssignDenied,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("ListAuditEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("denied assignment audit events = %d, want 1", len(events))
	}
	if events[0].ActorEmail != "admin@example.com" {
		t.Errorf("audit actor = %q", events[0].ActorEmail)
	}

	// Target unchanged.
	got, _ := db.GetUserByID(ctx, target.ID)
	if got.Role != "participant" {
		t.Errorf("target role = %q, want participant", got.Role)
	}
}

func TestAssignRole_OwnerGrantsAdmin(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	owner := db.SeedUser(t, "owner@example.com", "participant", "")
	target := db.SeedUser(t, "emp@example.com", "participant", "")
	_, ts := newAPITestServer(t, db, "owner@example.com")

	resp := doJSON(t, ts, http.MethodPut, "/api/v1/users/"+target.ID.String()+"/role",
		assignRoleBody{Role: "admin"}, accessCookie(t, owner.ID, owner.TokenVersion))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner granting admin: got %d, want 200", resp.StatusCode)
	}

	got, _ := db.GetUserByID(ctx, target.ID)
	if got.Role != "admin" {
		t.Errorf("target role = %q, want admin", got.Role)
	}

	events, err := db.ListAuditEvents(ctx, store.ListAuditEventsParams{
		Action: store.AuditActionRoleAssigned,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("ListAuditEvents: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("assignment audit events = %d, want 1", len(events))
	}
}

func TestAssignRole_AdminGrantsFacilitator(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	admin := db.SeedUser(t, "admin@example.com", "admin", "")
	target := db.SeedUser(t, "emp@example.com", "participant", "")
	_, ts := newAPITestServer(t, db, "")

	resp := doJSON(t, ts, http.MethodPut, "/api/v1/users/"+target.ID.String()+"/role",
		assignRoleBody{Role: "facilitator"}, accessCookie(t, admin.ID, admin.TokenVersion))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin granting facilitator: got %d, want 200", resp.StatusCode)
	}

	// Facilitator rides in user_type; the role column stays participant.
	got, _ := db.GetUserByID(ctx, target.ID)
	if got.Role != "participant" || got.UserType != "facilitator" {
		t.Errorf("target = role %q user_type %q, want participant/facilitator", got.Role, got.UserType)
	}
}

func TestAssignRole_NobodyGrantsOwner(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	owner := db.SeedUser(t, "owner@example.com", "participant", "")
	target := db.SeedUser(t, "emp@example.com", "participant", "")
	_, ts := newAPITestServer(t, db, "owner@example.com")

	resp := doJSON(t, ts, http.MethodPut, "/api/v1/users/"+target.ID.String()+"/role",
		assignRoleBody{Role: "owner"}, accessCookie(t, owner.ID, owner.TokenVersion))
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("owner granting owner: got %d, want 403", resp.StatusCode)
	}
}

func TestAssignRole_UnknownRole400(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	owner := db.SeedUser(t, "owner@example.com", "participant", "")
	target := db.SeedUser(t, "emp@example.com", "participant", "")
	_, ts := newAPITestServer(t, db, "owner@example.com")

	resp := doJSON(t, ts, http.MethodPut, "/api/v1/users/"+target.ID.String()+"/role",
		assignRoleBody{Role: "superuser"}, accessCookie(t, owner.ID, owner.TokenVersion))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown role: got %d, want 400", resp.StatusCode)
	}
}

func TestGetUser_ParticipantSeesSelfFull(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	participant := db.SeedUser(t, "emp@example.com", "participant", "")
	peer := db.SeedUser(t, "peer@example.com", "participant", "")
	_, ts := newAPITestServer(t, db, "")

	resp := doJSON(t, ts, http.MethodGet, "/api/v1/users/"+participant.ID.String(), nil, accessCookie(t, participant.ID, participant.TokenVersion))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get self: got %d, want 200", resp.StatusCode)
	}
	self := decodeBody[userResponseBody](t, resp)
	if self.Email == nil {
		t.Error("self view should include email")
	}

	resp = doJSON(t, ts, http.MethodGet, "/api/v1/users/"+peer.ID.String(), nil, accessCookie(t, participant.ID, participant.TokenVersion))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get peer: got %d, want 200", resp.StatusCode)
	}
	other := decodeBody[userResponseBody](t, resp)
	if other.Email != nil {
		t.Error("peer view should be redacted")
	}
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	user := db.SeedUser(t, "emp@example.com", "participant", "")
	_, ts := newAPITestServer(t, db, "")

	resp := doJSON(t, ts, http.MethodPatch, "/api/v1/users/me",
		updateProfileBody{DisplayName: "New Name"}, accessCookie(t, user.ID, user.TokenVersion))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update profile: got %d, want 200", resp.StatusCode)
	}

	got, _ := db.GetUserByID(ctx, user.ID)
	if got.DisplayName != "New Name" {
		t.Errorf("display name = %q, want %q", got.DisplayName, "New Name")
	}

	resp = doJSON(t, ts, http.MethodPatch, "/api/v1/users/me",
		updateProfileBody{DisplayName: ""}, accessCookie(t, user.ID, user.TokenVersion))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty display name: got %d, want 400", resp.StatusCode)
	}
}
