// Package tasks filters, sorts and groups the family task list for display.
package tasks

import (
	"sort"
	"time"

	"github.com/dukerupert/familyos/internal/model"
)

// Status selects tasks by completion.
type Status int

const (
	Any Status = iota
	Open
	Done
)

// Filter narrows a task list. Zero values match everything.
type Filter struct {
	Status   Status
	Assignee *int64 // a member id; pointer to 0 selects unassigned tasks
	DueBy    *time.Time
}

// Match reports whether t passes f.
func (f Filter) Match(t model.Task) bool {
	switch f.Status {
	case Open:
		if t.Done {
			return false
		}
	case Done:
		if !t.Done {
			return false
		}
	}
	if f.Assignee != nil {
		if *f.Assignee == 0 {
			if t.AssigneeID != nil {
				return false
			}
		} else if t.AssigneeID == nil || *t.AssigneeID != *f.Assignee {
			return false
		}
	}
	if f.DueBy != nil && (t.DueAt == nil || t.DueAt.After(*f.DueBy)) {
		return false
	}
	return true
}

// Apply returns the tasks matching f, in their original order.
func (f Filter) Apply(list []model.Task) []model.Task {
	out := make([]model.Task, 0, len(list))
	for _, t := range list {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Sort orders tasks in place: open before done, then by due date with undated
// tasks last, then by creation.
func Sort(list []model.Task) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Done != b.Done {
			return !a.Done
		}
		switch {
		case a.DueAt != nil && b.DueAt == nil:
			return true
		case a.DueAt == nil && b.DueAt != nil:
			return false
		case a.DueAt != nil && !a.DueAt.Equal(*b.DueAt):
			return a.DueAt.Before(*b.DueAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Overdue reports whether t is open and past due at now.
func Overdue(t model.Task, now time.Time) bool {
	return !t.Done && t.DueAt != nil && t.DueAt.Before(now)
}

// Group is the tasks assigned to one member, or unassigned when MemberID is 0.
type Group struct {
	MemberID int64
	Name     string
	Tasks    []model.Task
}

// GroupByAssignee buckets sorted tasks per assignee, following the order of
// members and ending with unassigned tasks. Tasks assigned to someone not in
// members are treated as unassigned.
func GroupByAssignee(list []model.Task, members []model.Membership) []Group {
	sorted := append([]model.Task(nil), list...)
	Sort(sorted)

	idx := make(map[int64]int, len(members))
	groups := make([]Group, 0, len(members)+1)
	for _, m := range members {
		idx[m.ID] = len(groups)
		groups = append(groups, Group{MemberID: m.ID, Name: m.DisplayName})
	}
	var unassigned []model.Task
	for _, t := range sorted {
		if t.AssigneeID != nil {
			if i, ok := idx[*t.AssigneeID]; ok {
				groups[i].Tasks = append(groups[i].Tasks, t)
				continue
			}
		}
		unassigned = append(unassigned, t)
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Tasks) > 0 {
			out = append(out, g)
		}
	}
	if len(unassigned) > 0 {
		out = append(out, Group{Name: "Unassigned", Tasks: unassigned})
	}
	return out
}
