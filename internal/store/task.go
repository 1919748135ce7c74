package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familyos/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, family_id, title, notes, assignee_member_id, due_at, done, completed_by, completed_at, created_by, created_at, updated_at`

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var assignee, completedBy, createdBy sql.NullInt64
	var dueAt, completedAt sql.NullTime
	err := scanner.Scan(
		&t.ID, &t.FamilyID, &t.Title, &t.Notes, &assignee, &dueAt,
		&t.Done, &completedBy, &completedAt, &createdBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.Int64
	}
	if dueAt.Valid {
		t.DueAt = &dueAt.Time
	}
	if completedBy.Valid {
		t.CompletedBy = &completedBy.Int64
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if createdBy.Valid {
		t.CreatedBy = &createdBy.Int64
	}
	return &t, nil
}

func (s *TaskStore) Create(familyID, title, notes string, assignee *int64, dueAt *time.Time, createdBy *int64) (*model.Task, error) {
	var due any
	if dueAt != nil {
		due = dueAt.UTC()
	}
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO tasks (family_id, title, notes, assignee_member_id, due_at, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		familyID, title, notes, assignee, due, createdBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(familyID, id)
}

func (s *TaskStore) GetByID(familyID string, id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE family_id = ? AND id = ?`, familyID, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) List(familyID string) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE family_id = ? ORDER BY created_at ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ToggleDone flips completion, recording the completing member.
func (s *TaskStore) ToggleDone(familyID string, id int64, by *int64) (*model.Task, error) {
	t, err := s.GetByID(familyID, id)
	if err != nil || t == nil {
		return t, err
	}

	now := time.Now().UTC()
	if t.Done {
		_, err = s.db.Exec(
			`UPDATE tasks SET done = 0, completed_by = NULL, completed_at = NULL, updated_at = ? WHERE id = ?`,
			now, id,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE tasks SET done = 1, completed_by = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			by, now, now, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("toggle task: %w", err)
	}
	return s.GetByID(familyID, id)
}

func (s *TaskStore) Delete(familyID string, id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE family_id = ? AND id = ?`, familyID, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
