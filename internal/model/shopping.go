package model

import "time"

type ShoppingItem struct {
	ID        int64      `json:"id"`
	FamilyID  string     `json:"family_id"`
	Name      string     `json:"name"`
	Quantity  string     `json:"quantity"`
	Category  string     `json:"category"`
	Checked   bool       `json:"checked"`
	CheckedBy *int64     `json:"checked_by"`
	CheckedAt *time.Time `json:"checked_at"`
	AddedBy   *int64     `json:"added_by"`
	CreatedAt time.Time  `json:"created_at"`
}
