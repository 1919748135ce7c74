package database

import "testing"

func TestOpenServerSchema(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "families", "memberships", "messages", "read_markers", "shopping_items", "tasks", "push_subscriptions", "calendar_events", "bills", "routines"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing: %v", table, err)
		}
	}
}

func TestOpenLocalSchema(t *testing.T) {
	db, err := OpenLocal(":memory:")
	if err != nil {
		t.Fatalf("open local: %v", err)
	}
	defer db.Close()

	var name string
	if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'prefs'`).Scan(&name); err != nil {
		t.Fatalf("prefs table missing: %v", err)
	}

	// The local schema must not carry backend tables.
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'messages'`).Scan(&name)
	if err == nil {
		t.Error("local schema unexpectedly contains messages table")
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var on int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&on); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if on != 1 {
		t.Errorf("foreign_keys = %d, want 1", on)
	}
}
