package store

import "testing"

func TestShoppingCreateList(t *testing.T) {
	db := setupTestDB(t)
	ss := NewShoppingStore(db)
	_, fam, owner := seedFamily(t, db, "owner@example.com", "Smiths")

	if _, err := ss.Create(fam.ID, "Milk", "2", "Dairy", &owner.ID); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ss.Create(fam.ID, "Bread", "", "Bakery", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	items, err := ss.List(fam.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Name != "Milk" || items[0].AddedBy == nil || *items[0].AddedBy != owner.ID {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].AddedBy != nil {
		t.Errorf("items[1].AddedBy = %v, want nil", items[1].AddedBy)
	}
}

func TestShoppingToggleAndClear(t *testing.T) {
	db := setupTestDB(t)
	ss := NewShoppingStore(db)
	_, fam, owner := seedFamily(t, db, "owner@example.com", "Smiths")

	item, _ := ss.Create(fam.ID, "Eggs", "12", "Dairy", nil)

	toggled, err := ss.ToggleChecked(fam.ID, item.ID, &owner.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.Checked || toggled.CheckedAt == nil || toggled.CheckedBy == nil {
		t.Errorf("after toggle = %+v, want checked with metadata", toggled)
	}

	untoggled, _ := ss.ToggleChecked(fam.ID, item.ID, &owner.ID)
	if untoggled.Checked || untoggled.CheckedAt != nil {
		t.Errorf("after second toggle = %+v, want unchecked", untoggled)
	}

	ss.ToggleChecked(fam.ID, item.ID, &owner.ID)
	n, err := ss.ClearChecked(fam.ID)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared = %d, want 1", n)
	}

	missing, err := ss.ToggleChecked(fam.ID, item.ID, nil)
	if err != nil {
		t.Fatalf("toggle missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for cleared item")
	}
}
