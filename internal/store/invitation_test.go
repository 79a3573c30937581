// ABOUTME: Integration tests for store/invitation.go — creation, token lookup,
// ABOUTME: the atomic accept guard, and expiry cleanup.
package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pulsehq/teampulse/internal/testutil"
)

func TestInvitationLifecycle(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	admin := s.SeedUser(t, "admin@example.com", "admin", "")

	inv, err := s.CreateInvitation(ctx, "newbie@example.com", "participant", "tok-abc", admin.ID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}
	if inv.Email != "newbie@example.com" || inv.InvitedRole != "participant" {
		t.Errorf("inv = %+v", inv)
	}

	got, err := s.GetInvitationByToken(ctx, "tok-abc")
	if err != nil {
		t.Fatalf("GetInvitationByToken: %v", err)
	}
	if got == nil || got.ID != inv.ID {
		t.Fatalf("lookup = %+v, want ID %v", got, inv.ID)
	}

	missing, err := s.GetInvitationByToken(ctx, "tok-unknown")
	if err != nil {
		t.Fatalf("GetInvitationByToken(missing): %v", err)
	}
	if missing != nil {
		t.Error("unknown token should return nil")
	}

	pending, err := s.ListPendingInvitations(ctx)
	if err != nil {
		t.Fatalf("ListPendingInvitations: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}

	user, ok, err := s.AcceptInvitation(ctx, "tok-abc", "Newbie", "", "participant", "")
	if err != nil {
		t.Fatalf("AcceptInvitation: %v", err)
	}
	if !ok {
		t.Fatal("AcceptInvitation should claim a pending invitation")
	}
	if user == nil || user.Email != "newbie@example.com" || user.DisplayName != "Newbie" {
		t.Fatalf("accepted user = %+v", user)
	}

	// Second accept loses the claim race and creates nothing.
	user, ok, err = s.AcceptInvitation(ctx, "tok-abc", "Imposter", "", "participant", "")
	if err != nil {
		t.Fatalf("AcceptInvitation (again): %v", err)
	}
	if ok || user != nil {
		t.Errorf("already-accepted invitation claimed again: ok=%v user=%+v", ok, user)
	}

	pending, _ = s.ListPendingInvitations(ctx)
	if len(pending) != 0 {
		t.Errorf("accepted invitation still listed as pending: %+v", pending)
	}
}

func TestAcceptInvitation_Expired(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	admin := s.SeedUser(t, "admin@example.com", "admin", "")
	if _, err := s.CreateInvitation(ctx, "late@example.com", "participant", "tok-late", admin.ID, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	user, ok, err := s.AcceptInvitation(ctx, "tok-late", "Late", "", "participant", "")
	if err != nil {
		t.Fatalf("AcceptInvitation: %v", err)
	}
	if ok || user != nil {
		t.Errorf("expired invitation claimed: ok=%v user=%+v", ok, user)
	}
}

func TestAcceptInvitation_ConflictLeavesInvitationPending(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	admin := s.SeedUser(t, "admin@example.com", "admin", "")
	s.SeedUser(t, "taken@example.com", "participant", "")
	if _, err := s.CreateInvitation(ctx, "taken@example.com", "participant", "tok-dup", admin.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	// The insert hits the unique email index; the claim must roll back with it.
	if _, _, err := s.AcceptInvitation(ctx, "tok-dup", "Taken", "", "participant", ""); err == nil {
		t.Fatal("AcceptInvitation should fail for an already-registered email")
	}

	inv, err := s.GetInvitationByToken(ctx, "tok-dup")
	if err != nil || inv == nil {
		t.Fatalf("GetInvitationByToken after failed accept: inv=%v err=%v", inv, err)
	}
	if inv.AcceptedAt.Valid {
		t.Error("failed accept consumed the invitation")
	}
	pending, err := s.ListPendingInvitations(ctx)
	if err != nil {
		t.Fatalf("ListPendingInvitations: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("len(pending) = %d, want 1", len(pending))
	}
}

func TestDeleteInvitation(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	admin := s.SeedUser(t, "admin@example.com", "admin", "")
	inv, err := s.CreateInvitation(ctx, "gone@example.com", "participant", "tok-gone", admin.ID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	if err := s.DeleteInvitation(ctx, inv.ID); err != nil {
		t.Fatalf("DeleteInvitation: %v", err)
	}
	if got, _ := s.GetInvitationByToken(ctx, "tok-gone"); got != nil {
		t.Error("deleted invitation still present")
	}

	// Unknown ID is a no-op.
	if err := s.DeleteInvitation(ctx, uuid.New()); err != nil {
		t.Errorf("DeleteInvitation(missing): %v", err)
	}
}

func TestDeleteExpiredInvitations(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	admin := s.SeedUser(t, "admin@example.com", "admin", "")

	if _, err := s.CreateInvitation(ctx, "old@example.com", "participant", "tok-old", admin.ID, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("CreateInvitation(old): %v", err)
	}
	if _, err := s.CreateInvitation(ctx, "fresh@example.com", "participant", "tok-fresh", admin.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("CreateInvitation(fresh): %v", err)
	}
	// Accepted-then-expired rows are kept as provisioning records.
	if _, err := s.CreateInvitation(ctx, "done@example.com", "participant", "tok-done", admin.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("CreateInvitation(done): %v", err)
	}
	if _, ok, err := s.AcceptInvitation(ctx, "tok-done", "Done", "", "participant", ""); err != nil || !ok {
		t.Fatalf("AcceptInvitation(done): ok=%v err=%v", ok, err)
	}

	n, err := s.DeleteExpiredInvitations(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredInvitations: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}
	if got, _ := s.GetInvitationByToken(ctx, "tok-old"); got != nil {
		t.Error("expired invitation should be gone")
	}
	if got, _ := s.GetInvitationByToken(ctx, "tok-fresh"); got == nil {
		t.Error("fresh invitation should survive cleanup")
	}
	if got, _ := s.GetInvitationByToken(ctx, "tok-done"); got == nil {
		t.Error("accepted invitation should survive cleanup")
	}
}
