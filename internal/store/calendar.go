package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familyos/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventCols = `id, family_id, title, description, location, starts_at, ends_at, all_day, rrule, member_id, created_by, created_at, updated_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var member, createdBy sql.NullInt64
	err := scanner.Scan(
		&e.ID, &e.FamilyID, &e.Title, &e.Description, &e.Location, &e.StartsAt, &e.EndsAt,
		&e.AllDay, &e.RRule, &member, &createdBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if member.Valid {
		e.MemberID = &member.Int64
	}
	if createdBy.Valid {
		e.CreatedBy = &createdBy.Int64
	}
	return &e, nil
}

// Create inserts e into e.FamilyID. ID and timestamps are assigned.
func (s *EventStore) Create(e model.Event) (*model.Event, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO calendar_events (family_id, title, description, location, starts_at, ends_at, all_day, rrule, member_id, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.FamilyID, e.Title, e.Description, e.Location, e.StartsAt.UTC(), e.EndsAt.UTC(),
		e.AllDay, e.RRule, e.MemberID, e.CreatedBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(e.FamilyID, id)
}

func (s *EventStore) GetByID(familyID string, id int64) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM calendar_events WHERE family_id = ? AND id = ?`, familyID, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListBetween returns the events that may appear in [from, to): one-off events
// overlapping the range and every repeating event that starts before its end.
func (s *EventStore) ListBetween(familyID string, from, to time.Time) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM calendar_events
		 WHERE family_id = ? AND starts_at < ? AND (rrule != '' OR ends_at > ? OR starts_at >= ?)
		 ORDER BY starts_at ASC, id ASC`,
		familyID, to.UTC(), from.UTC(), from.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Update rewrites the editable fields of e, matched by e.FamilyID and e.ID.
// It returns nil when no such event exists.
func (s *EventStore) Update(e model.Event) (*model.Event, error) {
	result, err := s.db.Exec(
		`UPDATE calendar_events
		 SET title = ?, description = ?, location = ?, starts_at = ?, ends_at = ?, all_day = ?, rrule = ?, member_id = ?, updated_at = ?
		 WHERE family_id = ? AND id = ?`,
		e.Title, e.Description, e.Location, e.StartsAt.UTC(), e.EndsAt.UTC(), e.AllDay, e.RRule, e.MemberID,
		time.Now().UTC(), e.FamilyID, e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(e.FamilyID, e.ID)
}

func (s *EventStore) Delete(familyID string, id int64) error {
	_, err := s.db.Exec(`DELETE FROM calendar_events WHERE family_id = ? AND id = ?`, familyID, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
