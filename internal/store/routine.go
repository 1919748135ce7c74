package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familyos/internal/model"
)

type RoutineStore struct {
	db *sql.DB
}

func NewRoutineStore(db *sql.DB) *RoutineStore {
	return &RoutineStore{db: db}
}

const routineCols = `id, family_id, title, notes, rrule, starts_on, assignee_member_id, last_done_at, last_done_by, created_by, created_at, updated_at`

func scanRoutine(scanner interface{ Scan(...any) error }) (*model.Routine, error) {
	var r model.Routine
	var assignee, doneBy, createdBy sql.NullInt64
	var doneAt sql.NullTime
	err := scanner.Scan(
		&r.ID, &r.FamilyID, &r.Title, &r.Notes, &r.RRule, &r.StartsOn, &assignee,
		&doneAt, &doneBy, &createdBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.StartsOn = r.StartsOn.UTC()
	if assignee.Valid {
		r.AssigneeID = &assignee.Int64
	}
	if doneAt.Valid {
		r.LastDoneAt = &doneAt.Time
	}
	if doneBy.Valid {
		r.LastDoneBy = &doneBy.Int64
	}
	if createdBy.Valid {
		r.CreatedBy = &createdBy.Int64
	}
	return &r, nil
}

func (s *RoutineStore) Create(r model.Routine) (*model.Routine, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO routines (family_id, title, notes, rrule, starts_on, assignee_member_id, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FamilyID, r.Title, r.Notes, r.RRule, r.StartsOn.UTC(), r.AssigneeID, r.CreatedBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert routine: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(r.FamilyID, id)
}

func (s *RoutineStore) GetByID(familyID string, id int64) (*model.Routine, error) {
	row := s.db.QueryRow(`SELECT `+routineCols+` FROM routines WHERE family_id = ? AND id = ?`, familyID, id)
	r, err := scanRoutine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get routine: %w", err)
	}
	return r, nil
}

func (s *RoutineStore) List(familyID string) ([]model.Routine, error) {
	rows, err := s.db.Query(
		`SELECT `+routineCols+` FROM routines WHERE family_id = ? ORDER BY created_at ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	defer rows.Close()

	var list []model.Routine
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan routine: %w", err)
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}

// MarkDone stamps the routine's latest completion.
func (s *RoutineStore) MarkDone(familyID string, id int64, at time.Time, by *int64) (*model.Routine, error) {
	result, err := s.db.Exec(
		`UPDATE routines SET last_done_at = ?, last_done_by = ?, updated_at = ? WHERE family_id = ? AND id = ?`,
		at.UTC(), by, time.Now().UTC(), familyID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("mark routine done: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(familyID, id)
}

func (s *RoutineStore) Delete(familyID string, id int64) error {
	_, err := s.db.Exec(`DELETE FROM routines WHERE family_id = ? AND id = ?`, familyID, id)
	if err != nil {
		return fmt.Errorf("delete routine: %w", err)
	}
	return nil
}
