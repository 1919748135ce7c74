// Package routine works out when recurring family chores are due and whether
// they have been done.
package routine

import (
	"sort"
	"time"

	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/recurrence"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusOverdue Status = "overdue"
	StatusNotDue  Status = "not_due"
)

// schedule returns the routine's rule, or false when it is due only once.
// An unreadable rule also counts as once; rules are checked when saved.
func schedule(r model.Routine) (recurrence.Rule, bool) {
	if r.RRule == "" {
		return recurrence.Rule{}, false
	}
	rule, err := recurrence.Parse(r.RRule)
	if err != nil {
		return recurrence.Rule{}, false
	}
	return rule, true
}

// ComputeStatus reports where r stands on today's calendar day, with the due
// day that status refers to: the current one, or the next one when nothing
// is due yet.
func ComputeStatus(r model.Routine, today time.Time) (Status, *time.Time) {
	day := recurrence.Day(today)
	start := recurrence.Day(r.StartsOn)

	due := start
	if rule, ok := schedule(r); ok {
		last, found := rule.Last(start, day)
		if !found {
			next, ok := rule.Next(start, day)
			if !ok {
				return StatusNotDue, nil
			}
			return StatusNotDue, &next
		}
		due = last
	} else if start.After(day) {
		return StatusNotDue, &start
	}

	if r.LastDoneAt != nil && !recurrence.Day(r.LastDoneAt.In(today.Location())).Before(due) {
		return StatusDone, &due
	}
	if due.Before(day) {
		return StatusOverdue, &due
	}
	return StatusPending, &due
}

// DueOn reports whether r belongs on date's to-do list: a repeating routine
// with an occurrence that day, or a one-off that has started and is not done.
func DueOn(r model.Routine, date time.Time) bool {
	day := recurrence.Day(date)
	start := recurrence.Day(r.StartsOn)
	rule, ok := schedule(r)
	if !ok {
		return r.LastDoneAt == nil && !start.After(day)
	}
	last, found := rule.Last(start, day)
	return found && last.Equal(day)
}

// Entry is a routine with its status on one day.
type Entry struct {
	model.Routine
	Status Status     `json:"status"`
	Due    *time.Time `json:"due"`
}

var statusOrder = map[Status]int{StatusOverdue: 0, StatusPending: 1, StatusNotDue: 2, StatusDone: 3}

// Agenda evaluates every routine on today and orders them overdue first,
// then due today, then upcoming, then done, each by due day.
func Agenda(list []model.Routine, today time.Time) []Entry {
	out := make([]Entry, len(list))
	for i, r := range list {
		st, due := ComputeStatus(r, today)
		out[i] = Entry{Routine: r, Status: st, Due: due}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Status != b.Status {
			return statusOrder[a.Status] < statusOrder[b.Status]
		}
		switch {
		case a.Due != nil && b.Due == nil:
			return true
		case a.Due == nil && b.Due != nil:
			return false
		case a.Due != nil && !a.Due.Equal(*b.Due):
			return a.Due.Before(*b.Due)
		}
		return a.ID < b.ID
	})
	return out
}
