// ABOUTME: Tests for environment-variable config parsing and helpers.
package config

import "testing"

// Not parallel: t.Setenv forbids it.
func TestLoad_RequiredAndDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/teampulse_test")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr default = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.Argon2MaxConcurrent != 5 {
		t.Errorf("Argon2MaxConcurrent default = %d, want 5", cfg.Argon2MaxConcurrent)
	}
	if !cfg.IsDevelopment() {
		t.Error("APP_ENV default should be development")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail when DATABASE_URL and JWT_SECRET are unset")
	}
}

// Not parallel: t.Setenv forbids it.
func TestLoad_ProductionRequiresSecureCookies(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/teampulse_test")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("COOKIE_SECURE", "false")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject APP_ENV=production with COOKIE_SECURE=false")
	}

	t.Setenv("COOKIE_SECURE", "true")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with secure cookies: %v", err)
	}
}

func TestValidate_EmptyJWTSecret(t *testing.T) {
	t.Parallel()
	c := &Config{CookieSecure: true}
	if err := c.Validate(); err == nil {
		t.Fatal("Validate should reject an empty JWT secret")
	}
}

func TestOwnerEmailList(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"single", "owner@co.com", 1},
		{"several with whitespace", " a@co.com , b@co.com,", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &Config{OwnerEmails: tt.in}
			if got := c.OwnerEmailList(); len(got) != tt.want {
				t.Errorf("OwnerEmailList(%q) = %v, want %d entries", tt.in, got, tt.want)
			}
		})
	}
}

func TestOwnerEmailList_TrimsEntries(t *testing.T) {
	t.Parallel()
	c := &Config{OwnerEmails: " owner@co.com , second@co.com"}
	got := c.OwnerEmailList()
	if len(got) != 2 || got[0] != "owner@co.com" || got[1] != "second@co.com" {
		t.Errorf("OwnerEmailList = %v, want trimmed entries", got)
	}
}
