package shopping

import (
	"sort"

	"github.com/dukerupert/familyos/internal/model"
)

// Section is one aisle of the grouped list.
type Section struct {
	Category string
	Items    []model.ShoppingItem
	Open     int // unchecked items
}

// Group splits items into sections in Categories order. Unknown categories
// follow alphabetically and Other comes last. Within a section unchecked items
// come first, then by when they were added.
func Group(items []model.ShoppingItem) []Section {
	byCat := make(map[string][]model.ShoppingItem)
	for _, it := range items {
		cat := it.Category
		if cat == "" {
			cat = Other
		}
		byCat[cat] = append(byCat[cat], it)
	}

	order := make([]string, 0, len(byCat))
	known := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		known[c] = true
		if _, ok := byCat[c]; ok {
			order = append(order, c)
		}
	}
	var extra []string
	for c := range byCat {
		if !known[c] && c != Other {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)
	if _, ok := byCat[Other]; ok {
		order = append(order, Other)
	}

	sections := make([]Section, 0, len(order))
	for _, c := range order {
		list := byCat[c]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Checked != list[j].Checked {
				return !list[i].Checked
			}
			if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].CreatedAt.Before(list[j].CreatedAt)
			}
			return list[i].ID < list[j].ID
		})
		open := 0
		for _, it := range list {
			if !it.Checked {
				open++
			}
		}
		sections = append(sections, Section{Category: c, Items: list, Open: open})
	}
	return sections
}
