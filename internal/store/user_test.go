package store

import (
	"errors"
	"testing"
)

func TestUserCreate(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Name != "Alice" {
		t.Errorf("name = %q, want %q", u.Name, "Alice")
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	if _, err := us.Create("alice@example.com", "Alice", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("ALICE@example.com", "Alice2", "hash"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}
}

func TestUserGetCredentials(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	created, err := us.Create("bob@example.com", "Bob", "s3cret-hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, hash, err := us.GetCredentials("bob@example.com")
	if err != nil {
		t.Fatalf("get credentials: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("user = %+v, want id %d", u, created.ID)
	}
	if hash != "s3cret-hash" {
		t.Errorf("hash = %q, want %q", hash, "s3cret-hash")
	}

	u, hash, err = us.GetCredentials("nobody@example.com")
	if err != nil {
		t.Fatalf("get credentials: %v", err)
	}
	if u != nil || hash != "" {
		t.Errorf("expected no credentials for unknown email, got %+v %q", u, hash)
	}
}

func TestUserUpdateName(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	created, _ := us.Create("carol@example.com", "Carol", "hash")
	u, err := us.UpdateName(created.ID, "Caroline")
	if err != nil {
		t.Fatalf("update name: %v", err)
	}
	if u.Name != "Caroline" {
		t.Errorf("name = %q, want %q", u.Name, "Caroline")
	}
}
