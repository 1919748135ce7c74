package model

import "time"

type Task struct {
	ID          int64      `json:"id"`
	FamilyID    string     `json:"family_id"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes"`
	AssigneeID  *int64     `json:"assignee_member_id"`
	DueAt       *time.Time `json:"due_at"`
	Done        bool       `json:"done"`
	CompletedBy *int64     `json:"completed_by"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedBy   *int64     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
