package tasks

import (
	"testing"
	"time"

	"github.com/dukerupert/familyos/internal/model"
)

func ptr[T any](v T) *T { return &v }

var day = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func sample() []model.Task {
	return []model.Task{
		{ID: 1, Title: "bins", AssigneeID: ptr(int64(10)), DueAt: ptr(day.Add(48 * time.Hour)), CreatedAt: day},
		{ID: 2, Title: "dishes", AssigneeID: ptr(int64(11)), Done: true, CreatedAt: day},
		{ID: 3, Title: "homework", AssigneeID: ptr(int64(11)), DueAt: ptr(day.Add(24 * time.Hour)), CreatedAt: day},
		{ID: 4, Title: "call grandma", CreatedAt: day.Add(time.Hour)},
		{ID: 5, Title: "laundry", CreatedAt: day},
	}
}

func taskIDs(list []model.Task) []int64 {
	out := make([]int64, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

func equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"all", Filter{}, []int64{1, 2, 3, 4, 5}},
		{"open", Filter{Status: Open}, []int64{1, 3, 4, 5}},
		{"done", Filter{Status: Done}, []int64{2}},
		{"assignee", Filter{Assignee: ptr(int64(11))}, []int64{2, 3}},
		{"unassigned", Filter{Assignee: ptr(int64(0))}, []int64{4, 5}},
		{"due by", Filter{DueBy: ptr(day.Add(30 * time.Hour))}, []int64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := taskIDs(tt.filter.Apply(sample())); !equal(got, tt.want) {
				t.Errorf("Apply = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSort(t *testing.T) {
	list := sample()
	Sort(list)
	want := []int64{3, 1, 5, 4, 2}
	if got := taskIDs(list); !equal(got, want) {
		t.Errorf("Sort = %v, want %v", got, want)
	}
}

func TestOverdue(t *testing.T) {
	task := model.Task{DueAt: ptr(day)}
	if !Overdue(task, day.Add(time.Minute)) {
		t.Error("expected overdue")
	}
	task.Done = true
	if Overdue(task, day.Add(time.Minute)) {
		t.Error("done task is never overdue")
	}
	if Overdue(model.Task{}, day) {
		t.Error("undated task is never overdue")
	}
}

func TestGroupByAssignee(t *testing.T) {
	members := []model.Membership{
		{ID: 11, DisplayName: "Kid"},
		{ID: 10, DisplayName: "Parent"},
		{ID: 12, DisplayName: "Nobody"},
	}
	groups := GroupByAssignee(sample(), members)
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	if groups[0].Name != "Kid" || !equal(taskIDs(groups[0].Tasks), []int64{3, 2}) {
		t.Errorf("groups[0] = %s %v", groups[0].Name, taskIDs(groups[0].Tasks))
	}
	if groups[1].Name != "Parent" || !equal(taskIDs(groups[1].Tasks), []int64{1}) {
		t.Errorf("groups[1] = %s %v", groups[1].Name, taskIDs(groups[1].Tasks))
	}
	if groups[2].MemberID != 0 || !equal(taskIDs(groups[2].Tasks), []int64{5, 4}) {
		t.Errorf("groups[2] = %d %v", groups[2].MemberID, taskIDs(groups[2].Tasks))
	}
}
