package model

import "time"

// Role is a member's standing within a family.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleAdult Role = "adult"
	RoleChild Role = "child"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleAdult, RoleChild:
		return true
	}
	return false
}

// CanManage reports whether the role may invite and remove members.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

type MembershipStatus string

const (
	StatusActive  MembershipStatus = "active"
	StatusInvited MembershipStatus = "invited"
)

type Family struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership is one user's relationship to one family. Invited rows may not
// have a user yet; they are matched by Email until accepted.
type Membership struct {
	ID          int64            `json:"id"`
	FamilyID    string           `json:"family_id"`
	FamilyName  string           `json:"family_name"`
	UserID      *int64           `json:"user_id"`
	Email       string           `json:"email,omitempty"`
	DisplayName string           `json:"display_name"`
	Role        Role             `json:"role"`
	Status      MembershipStatus `json:"status"`
	InvitedBy   *int64           `json:"invited_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
