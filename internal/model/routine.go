package model

import "time"

// Routine is a chore that comes due on a schedule starting StartsOn, a
// calendar day at midnight UTC. Without an RRule it is due once.
type Routine struct {
	ID         int64      `json:"id"`
	FamilyID   string     `json:"family_id"`
	Title      string     `json:"title"`
	Notes      string     `json:"notes"`
	RRule      string     `json:"rrule"`
	StartsOn   time.Time  `json:"starts_on"`
	AssigneeID *int64     `json:"assignee_member_id"`
	LastDoneAt *time.Time `json:"last_done_at"`
	LastDoneBy *int64     `json:"last_done_by"`
	CreatedBy  *int64     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
