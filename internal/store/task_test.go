package store

import (
	"testing"
	"time"
)

func TestTaskCreateAndToggle(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	_, fam, owner := seedFamily(t, db, "owner@example.com", "Smiths")

	due := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	task, err := ts.Create(fam.ID, "Take out bins", "", &owner.ID, &due, &owner.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.DueAt == nil || !task.DueAt.Equal(due) {
		t.Errorf("due_at = %v, want %v", task.DueAt, due)
	}
	if task.Done {
		t.Error("new task should be open")
	}

	done, err := ts.ToggleDone(fam.ID, task.ID, &owner.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !done.Done || done.CompletedAt == nil {
		t.Errorf("after toggle = %+v, want done", done)
	}

	reopened, _ := ts.ToggleDone(fam.ID, task.ID, &owner.ID)
	if reopened.Done || reopened.CompletedBy != nil {
		t.Errorf("after second toggle = %+v, want open", reopened)
	}
}

func TestTaskListAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	_, fam, _ := seedFamily(t, db, "owner@example.com", "Smiths")

	a, _ := ts.Create(fam.ID, "A", "", nil, nil, nil)
	ts.Create(fam.ID, "B", "notes", nil, nil, nil)

	if err := ts.Delete(fam.ID, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tasks, err := ts.List(fam.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "B" {
		t.Errorf("tasks = %+v, want only B", tasks)
	}
}
