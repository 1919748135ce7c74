package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/familyos/internal/database"
	"github.com/dukerupert/familyos/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedFamily creates a user who owns a new family.
func seedFamily(t *testing.T, db *sql.DB, email, familyName string) (*model.User, *model.Family, *model.Membership) {
	t.Helper()
	u, err := NewUserStore(db).Create(email, "Owner", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f, m, err := NewFamilyStore(db).CreateWithOwner(familyName, u.ID, "Owner")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	return u, f, m
}
