package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/familyos/internal/model"
)

func TestFamilyCreateWithOwner(t *testing.T) {
	db := setupTestDB(t)
	u, f, m := seedFamily(t, db, "owner@example.com", "Smiths")

	if f.ID == "" {
		t.Fatal("expected family id")
	}
	if f.Name != "Smiths" {
		t.Errorf("name = %q, want %q", f.Name, "Smiths")
	}
	if m.Role != model.RoleOwner {
		t.Errorf("role = %q, want %q", m.Role, model.RoleOwner)
	}
	if m.Status != model.StatusActive {
		t.Errorf("status = %q, want %q", m.Status, model.StatusActive)
	}
	if m.UserID == nil || *m.UserID != u.ID {
		t.Errorf("user_id = %v, want %d", m.UserID, u.ID)
	}
	if m.FamilyName != "Smiths" {
		t.Errorf("family_name = %q, want %q", m.FamilyName, "Smiths")
	}
}

func TestActiveMembershipsExcludesInvitations(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)
	us := NewUserStore(db)

	owner, fam, _ := seedFamily(t, db, "owner@example.com", "Smiths")
	guest, err := us.Create("guest@example.com", "Guest", "hash")
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	if _, _, err := fs.CreateWithOwner("Guest Home", guest.ID, "Guest"); err != nil {
		t.Fatalf("create guest family: %v", err)
	}

	if _, err := fs.Invite(fam.ID, "guest@example.com", model.RoleAdult, owner.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}

	active, err := fs.ActiveMemberships(guest.ID)
	if err != nil {
		t.Fatalf("active memberships: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("len(active) = %d, want 1", len(active))
	}
	if active[0].FamilyName != "Guest Home" {
		t.Errorf("family_name = %q, want %q", active[0].FamilyName, "Guest Home")
	}

	invites, err := fs.Invitations(guest.ID, guest.Email)
	if err != nil {
		t.Fatalf("invitations: %v", err)
	}
	if len(invites) != 1 || invites[0].FamilyID != fam.ID {
		t.Fatalf("invitations = %+v, want one for %s", invites, fam.ID)
	}
}

func TestActiveMembershipsJoinOrder(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)

	u, first, _ := seedFamily(t, db, "owner@example.com", "Zeta")
	second, _, err := fs.CreateWithOwner("Alpha", u.ID, "Owner")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	active, err := fs.ActiveMemberships(u.ID)
	if err != nil {
		t.Fatalf("active memberships: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("len = %d, want 2", len(active))
	}
	if active[0].FamilyID != first.ID || active[1].FamilyID != second.ID {
		t.Errorf("order = [%s %s], want [%s %s]", active[0].FamilyID, active[1].FamilyID, first.ID, second.ID)
	}
}

func TestInviteByEmailThenAccept(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)
	us := NewUserStore(db)

	owner, fam, _ := seedFamily(t, db, "owner@example.com", "Smiths")

	inv, err := fs.Invite(fam.ID, "later@example.com", model.RoleChild, owner.ID)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if inv.UserID != nil {
		t.Errorf("expected unbound invitation, got user %d", *inv.UserID)
	}

	if _, err := fs.Invite(fam.ID, "later@example.com", model.RoleChild, owner.ID); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("second invite err = %v, want ErrAlreadyMember", err)
	}

	later, err := us.Create("later@example.com", "Later", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	m, err := fs.Accept(inv.ID, later.ID, later.Email, "Kiddo")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.Status != model.StatusActive {
		t.Errorf("status = %q, want %q", m.Status, model.StatusActive)
	}
	if m.DisplayName != "Kiddo" {
		t.Errorf("display_name = %q, want %q", m.DisplayName, "Kiddo")
	}

	got, err := fs.GetActiveMember(fam.ID, later.ID)
	if err != nil {
		t.Fatalf("get active member: %v", err)
	}
	if got == nil || got.ID != inv.ID {
		t.Fatalf("active member = %+v, want id %d", got, inv.ID)
	}
}

func TestAcceptRejectsOtherUser(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)
	us := NewUserStore(db)

	owner, fam, _ := seedFamily(t, db, "owner@example.com", "Smiths")
	inv, _ := fs.Invite(fam.ID, "invitee@example.com", model.RoleAdult, owner.ID)
	stranger, _ := us.Create("stranger@example.com", "Stranger", "hash")

	if _, err := fs.Accept(inv.ID, stranger.ID, stranger.Email, "X"); !errors.Is(err, ErrNotInvited) {
		t.Errorf("err = %v, want ErrNotInvited", err)
	}
}

func TestDeclineInvitation(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)
	us := NewUserStore(db)

	owner, fam, _ := seedFamily(t, db, "owner@example.com", "Smiths")
	invitee, _ := us.Create("invitee@example.com", "Invitee", "hash")
	inv, err := fs.Invite(fam.ID, invitee.Email, model.RoleAdult, owner.ID)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}

	if err := fs.Decline(inv.ID, invitee.ID, invitee.Email); err != nil {
		t.Fatalf("decline: %v", err)
	}
	invites, _ := fs.Invitations(invitee.ID, invitee.Email)
	if len(invites) != 0 {
		t.Errorf("len(invitations) = %d, want 0", len(invites))
	}
}

func TestRemoveMemberKeepsOwner(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)

	owner, fam, ownerM := seedFamily(t, db, "owner@example.com", "Smiths")
	inv, _ := fs.Invite(fam.ID, "x@example.com", model.RoleAdult, owner.ID)

	removed, err := fs.RemoveMember(fam.ID, ownerM.ID)
	if err != nil {
		t.Fatalf("remove owner: %v", err)
	}
	if removed {
		t.Error("owner membership must not be removable")
	}

	removed, err = fs.RemoveMember(fam.ID, inv.ID)
	if err != nil {
		t.Fatalf("remove invitee: %v", err)
	}
	if !removed {
		t.Error("expected invitee to be removed")
	}

	members, _ := fs.ListMembers(fam.ID)
	if len(members) != 1 {
		t.Errorf("len(members) = %d, want 1", len(members))
	}
}

func TestRenameFamily(t *testing.T) {
	db := setupTestDB(t)
	fs := NewFamilyStore(db)
	_, fam, _ := seedFamily(t, db, "owner@example.com", "Smiths")

	got, err := fs.Rename(fam.ID, "Smith-Jones")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got == nil || got.Name != "Smith-Jones" {
		t.Fatalf("renamed = %+v", got)
	}

	missing, err := fs.Rename("no-such-family", "X")
	if err != nil {
		t.Fatalf("rename missing: %v", err)
	}
	if missing != nil {
		t.Errorf("rename missing = %+v, want nil", missing)
	}
}
