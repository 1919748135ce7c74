package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/familyos/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrAlreadyMember is returned when inviting an address that already
	// has an active or pending membership in the family.
	ErrAlreadyMember = errors.New("already a member or invited")
	// ErrNotInvited is returned when accepting an invitation that does not
	// exist or is not addressed to the caller.
	ErrNotInvited = errors.New("invitation not found")
)

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	err := scanner.Scan(&f.ID, &f.Name, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	var userID, invitedBy sql.NullInt64
	err := scanner.Scan(
		&m.ID, &m.FamilyID, &m.FamilyName, &userID, &m.Email, &m.DisplayName,
		&m.Role, &m.Status, &invitedBy, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		m.UserID = &userID.Int64
	}
	if invitedBy.Valid {
		m.InvitedBy = &invitedBy.Int64
	}
	return &m, nil
}

const familyCols = `id, name, created_by, created_at, updated_at`

const membershipSelect = `SELECT m.id, m.family_id, f.name, m.user_id, m.email, m.display_name,
	m.role, m.status, m.invited_by, m.created_at, m.updated_at
	FROM memberships m JOIN families f ON f.id = m.family_id`

func collectMemberships(rows *sql.Rows) ([]model.Membership, error) {
	defer rows.Close()
	var members []model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// CreateWithOwner creates a family and makes the user its active owner in a
// single transaction.
func (s *FamilyStore) CreateWithOwner(name string, ownerID int64, displayName string) (*model.Family, *model.Membership, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	now := time.Now().UTC()
	if _, err := tx.Exec(
		`INSERT INTO families (id, name, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, ownerID, now, now,
	); err != nil {
		return nil, nil, fmt.Errorf("insert family: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO memberships (family_id, user_id, display_name, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, displayName, model.RoleOwner, model.StatusActive, now, now,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert owner membership: %w", err)
	}
	memberID, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	f, err := s.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.GetMembership(memberID)
	if err != nil {
		return nil, nil, err
	}
	return f, m, nil
}

func (s *FamilyStore) GetByID(id string) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

// Rename sets the family name and returns the updated row, or nil when the
// family does not exist.
func (s *FamilyStore) Rename(id, name string) (*model.Family, error) {
	_, err := s.db.Exec(`UPDATE families SET name = ?, updated_at = ? WHERE id = ?`, name, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("rename family: %w", err)
	}
	return s.GetByID(id)
}

func (s *FamilyStore) GetMembership(id int64) (*model.Membership, error) {
	row := s.db.QueryRow(membershipSelect+` WHERE m.id = ?`, id)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// GetActiveMember returns the user's active membership in the family, or nil.
func (s *FamilyStore) GetActiveMember(familyID string, userID int64) (*model.Membership, error) {
	row := s.db.QueryRow(
		membershipSelect+` WHERE m.family_id = ? AND m.user_id = ? AND m.status = ?`,
		familyID, userID, model.StatusActive,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active member: %w", err)
	}
	return m, nil
}

// ActiveMemberships lists the user's accepted memberships in join order.
// Invitations are never included.
func (s *FamilyStore) ActiveMemberships(userID int64) ([]model.Membership, error) {
	rows, err := s.db.Query(
		membershipSelect+` WHERE m.user_id = ? AND m.status = ? ORDER BY m.created_at ASC, m.id ASC`,
		userID, model.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list active memberships: %w", err)
	}
	return collectMemberships(rows)
}

// Invitations lists pending invitations addressed to the user, either by
// user id or by email address.
func (s *FamilyStore) Invitations(userID int64, email string) ([]model.Membership, error) {
	rows, err := s.db.Query(
		membershipSelect+` WHERE m.status = ? AND (m.user_id = ? OR (m.user_id IS NULL AND m.email = ?))
		 ORDER BY m.created_at ASC, m.id ASC`,
		model.StatusInvited, userID, strings.TrimSpace(email),
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return collectMemberships(rows)
}

// ListMembers returns every membership of the family, active members
// before pending invitations, each group in join order.
func (s *FamilyStore) ListMembers(familyID string) ([]model.Membership, error) {
	rows, err := s.db.Query(
		membershipSelect+` WHERE m.family_id = ? ORDER BY m.status ASC, m.created_at ASC, m.id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return collectMemberships(rows)
}

// Invite records a pending membership for email. If a user with that
// address already exists the invitation is bound to them immediately.
func (s *FamilyStore) Invite(familyID, email string, role model.Role, invitedBy int64) (*model.Membership, error) {
	email = strings.TrimSpace(email)

	var userID sql.NullInt64
	err := s.db.QueryRow(`SELECT id FROM users WHERE email = ?`, email).Scan(&userID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("lookup invitee: %w", err)
	}

	var exists int
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM memberships WHERE family_id = ? AND (email = ? OR (user_id IS NOT NULL AND user_id = ?))`,
		familyID, email, userID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check existing membership: %w", err)
	}
	if exists > 0 {
		return nil, ErrAlreadyMember
	}

	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO memberships (family_id, user_id, email, role, status, invited_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		familyID, userID, email, role, model.StatusInvited, invitedBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetMembership(id)
}

// Accept turns the invitation into an active membership for the user.
func (s *FamilyStore) Accept(invitationID, userID int64, email, displayName string) (*model.Membership, error) {
	result, err := s.db.Exec(
		`UPDATE memberships SET user_id = ?, display_name = ?, status = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND (user_id = ? OR (user_id IS NULL AND email = ?))`,
		userID, displayName, model.StatusActive, time.Now().UTC(),
		invitationID, model.StatusInvited, userID, strings.TrimSpace(email),
	)
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotInvited
	}
	return s.GetMembership(invitationID)
}

// Decline deletes an invitation addressed to the user.
func (s *FamilyStore) Decline(invitationID, userID int64, email string) error {
	result, err := s.db.Exec(
		`DELETE FROM memberships WHERE id = ? AND status = ? AND (user_id = ? OR (user_id IS NULL AND email = ?))`,
		invitationID, model.StatusInvited, userID, strings.TrimSpace(email),
	)
	if err != nil {
		return fmt.Errorf("decline invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotInvited
	}
	return nil
}

// RemoveMember deletes a membership from the family. The owner row is kept.
func (s *FamilyStore) RemoveMember(familyID string, memberID int64) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM memberships WHERE id = ? AND family_id = ? AND role != ?`,
		memberID, familyID, model.RoleOwner,
	)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
