package model

import "time"

// Event is a calendar entry. A non-empty RRule repeats it from StartsAt, each
// occurrence keeping the same length.
type Event struct {
	ID          int64     `json:"id"`
	FamilyID    string    `json:"family_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	AllDay      bool      `json:"all_day"`
	RRule       string    `json:"rrule"`
	MemberID    *int64    `json:"member_id"`
	CreatedBy   *int64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Occurrence is one appearance of an Event on the calendar.
type Occurrence struct {
	EventID   int64     `json:"event_id"`
	Title     string    `json:"title"`
	Location  string    `json:"location"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	AllDay    bool      `json:"all_day"`
	MemberID  *int64    `json:"member_id"`
	Recurring bool      `json:"recurring"`
}
