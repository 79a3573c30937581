// ABOUTME: Integration tests for the auth API: register, login, refresh
// ABOUTME: rotation and reuse detection, logout, and the me endpoint.
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/pulsehq/teampulse/internal/testutil"
)

func TestRegisterLoginMe(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	_, ts := newAPITestServer(t, db, "")

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "dana@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: got %d, want 201", resp.StatusCode)
	}

	// Duplicate registration conflicts, case-insensitively.
	resp = doJSON(t, ts, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "DANA@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register: got %d, want 409", resp.StatusCode)
	}

	user, err := db.GetUserByEmail(ctx, "dana@example.com")
	if err != nil || user == nil {
		t.Fatalf("registered user lookup: %v / %+v", err, user)
	}
	// Display name defaults to the email local part.
	if user.DisplayName != "dana" {
		t.Errorf("display name = %q, want %q", user.DisplayName, "dana")
	}

	resp = doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "dana@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: got %d, want 200", resp.StatusCode)
	}
	cookies := resp.Cookies()

	var accessToken *http.Cookie
	for _, c := range cookies {
		if c.Name == "access_token" {
			accessToken = c
		}
	}
	if accessToken == nil {
		t.Fatal("login did not set access_token cookie")
	}
	if !accessToken.HttpOnly {
		t.Error("access_token cookie should be HttpOnly")
	}

	resp = doJSON(t, ts, http.MethodGet, "/api/v1/auth/me", nil, accessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: got %d, want 200", resp.StatusCode)
	}
	me := decodeBody[struct {
		Email         string `json:"email"`
		EffectiveRole string `json:"effective_role"`
		DisplayRole   string `json:"display_role"`
	}](t, resp)
	if me.Email != "dana@example.com" {
		t.Errorf("me.email = %q", me.Email)
	}
	if me.EffectiveRole != "participant" || me.DisplayRole != "Employee" {
		t.Errorf("me roles = %q/%q, want participant/Employee", me.EffectiveRole, me.DisplayRole)
	}
}

func TestMe_OwnerAllowlistReflected(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	owner := db.SeedUser(t, "boss@example.com", "participant", "")
	_, ts := newAPITestServer(t, db, "boss@example.com")

	resp := doJSON(t, ts, http.MethodGet, "/api/v1/auth/me", nil, accessCookie(t, owner.ID, owner.TokenVersion))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: got %d, want 200", resp.StatusCode)
	}
	me := decodeBody[struct {
		EffectiveRole string `json:"effective_role"`
		DisplayRole   string `json:"display_role"`
	}](t, resp)
	if me.EffectiveRole != "owner" || me.DisplayRole != "Owner" {
		t.Errorf("me roles = %q/%q, want owner/Owner", me.EffectiveRole, me.DisplayRole)
	}
}

func TestLogin_WrongPassword401(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	_, ts := newAPITestServer(t, db, "")

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: got %d, want 201", resp.StatusCode)
	}

	for _, tc := range []struct {
		name, email, password string
	}{
		{"wrong password", "sam@example.com", "not-the-password"},
		{"unknown account", "ghost@example.com", "hunter2hunter2"},
	} {
		resp := doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", map[string]string{
			"email":    tc.email,
			"password": tc.password,
		})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: got %d, want 401", tc.name, resp.StatusCode)
		}
	}
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	_, ts := newAPITestServer(t, db, "")

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "rot@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: got %d", resp.StatusCode)
	}
	resp = doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "rot@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: got %d", resp.StatusCode)
	}

	before, err := db.GetUserByEmail(ctx, "rot@example.com")
	if err != nil || before == nil {
		t.Fatalf("user lookup before reuse: %v", err)
	}

	var refresh *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" {
			refresh = c
		}
	}
	if refresh == nil {
		t.Fatal("login did not set refresh_token cookie")
	}

	// First refresh succeeds and rotates the token.
	resp = doJSON(t, ts, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: got %d, want 200", resp.StatusCode)
	}

	// Replaying the old refresh token is reuse: denied, and every session for
	// the user is invalidated.
	resp = doJSON(t, ts, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reused refresh: got %d, want 401", resp.StatusCode)
	}

	user, err := db.GetUserByEmail(ctx, "rot@example.com")
	if err != nil || user == nil {
		t.Fatalf("user lookup: %v", err)
	}
	if user.TokenVersion <= before.TokenVersion {
		t.Errorf("token version = %d, want > %d after refresh reuse", user.TokenVersion, before.TokenVersion)
	}
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	_, ts := newAPITestServer(t, db, "")

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "bye@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: got %d", resp.StatusCode)
	}
	resp = doJSON(t, ts, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "bye@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: got %d", resp.StatusCode)
	}
	var refresh *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" {
			refresh = c
		}
	}

	resp = doJSON(t, ts, http.MethodPost, "/api/v1/auth/logout", nil, refresh)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: got %d, want 200", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "access_token" || c.Name == "refresh_token" {
			if c.MaxAge >= 0 && c.Value != "" {
				t.Errorf("cookie %s not cleared on logout", c.Name)
			}
		}
	}

	// The revoked token no longer refreshes.
	resp = doJSON(t, ts, http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("refresh after logout: got %d, want 401", resp.StatusCode)
	}
}
