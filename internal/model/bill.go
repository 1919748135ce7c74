package model

import "time"

// Bill is a payment the family owes, once on FirstDue or repeating from it.
// Dates are calendar days at midnight UTC. PaidThrough is the latest due date
// that has been paid.
type Bill struct {
	ID          int64      `json:"id"`
	FamilyID    string     `json:"family_id"`
	Name        string     `json:"name"`
	AmountCents int64      `json:"amount_cents"`
	FirstDue    time.Time  `json:"first_due"`
	RRule       string     `json:"rrule"`
	AutoPay     bool       `json:"autopay"`
	PaidThrough *time.Time `json:"paid_through"`
	PaidBy      *int64     `json:"paid_by"`
	CreatedBy   *int64     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
