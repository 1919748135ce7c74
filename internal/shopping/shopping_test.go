package shopping

import (
	"testing"
	"time"

	"github.com/dukerupert/familyos/internal/model"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"milk", "Dairy"},
		{"Chicken breast", "Meat & Seafood"},
		{"whole wheat bread", "Bakery"},
		{"frozen pizza", "Frozen"},
		{"ice cream", "Frozen"},
		{"organic baby spinach", "Produce"},
		{"Sparkling Water bottles", "Beverages"},
		{"canned black beans", "Pantry"},
		{"peanut butter", "Pantry"},
		{"dish soap refill", "Household"},
		{"greek yogurt cups", "Dairy"},
		{"apples", "Produce"},
		{"tomatoes", "Produce"},
		{"diapers size 4", "Baby"},
		{"icing sugar", "Pantry"},
		{"widget", Other},
		{"   ", Other},
	}
	for _, tt := range tests {
		if got := Categorize(tt.input); got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestGroupOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	items := []model.ShoppingItem{
		{ID: 1, Name: "widget", Category: Other, CreatedAt: base},
		{ID: 2, Name: "milk", Category: "Dairy", Checked: true, CreatedAt: base},
		{ID: 3, Name: "cheese", Category: "Dairy", CreatedAt: base.Add(time.Minute)},
		{ID: 4, Name: "apples", Category: "Produce", CreatedAt: base},
		{ID: 5, Name: "nails", Category: "Hardware", CreatedAt: base},
		{ID: 6, Name: "yogurt", Category: "Dairy", CreatedAt: base.Add(2 * time.Minute)},
	}

	got := Group(items)
	wantCats := []string{"Produce", "Dairy", "Hardware", Other}
	if len(got) != len(wantCats) {
		t.Fatalf("sections = %d, want %d", len(got), len(wantCats))
	}
	for i, c := range wantCats {
		if got[i].Category != c {
			t.Errorf("section[%d] = %q, want %q", i, got[i].Category, c)
		}
	}

	dairy := got[1]
	wantIDs := []int64{3, 6, 2}
	for i, id := range wantIDs {
		if dairy.Items[i].ID != id {
			t.Errorf("dairy[%d].ID = %d, want %d", i, dairy.Items[i].ID, id)
		}
	}
	if dairy.Open != 2 {
		t.Errorf("dairy open = %d, want 2", dairy.Open)
	}
}

func TestGroupEmptyCategoryIsOther(t *testing.T) {
	got := Group([]model.ShoppingItem{{ID: 1, Name: "thing"}})
	if len(got) != 1 || got[0].Category != Other {
		t.Errorf("sections = %+v, want one Other section", got)
	}
}
