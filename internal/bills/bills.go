// Package bills tracks which due date of a recurring bill is next unpaid and
// how urgent it is.
package bills

import (
	"sort"
	"time"

	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/recurrence"
)

type State string

const (
	StateUpcoming State = "upcoming"
	StateDueSoon  State = "due_soon"
	StateOverdue  State = "overdue"
	StatePaid     State = "paid"
)

// SoonDays is how many days ahead a due date counts as due soon.
const SoonDays = 3

// NextUnpaid returns the first due date after PaidThrough, or false when
// every due date of the bill is paid. A repeating bill whose rule no longer
// parses is treated as a one-off.
func NextUnpaid(b model.Bill) (time.Time, bool) {
	first := recurrence.Day(b.FirstDue)
	if b.PaidThrough == nil || recurrence.Day(*b.PaidThrough).Before(first) {
		return first, true
	}
	if b.RRule == "" {
		return time.Time{}, false
	}
	rule, err := recurrence.Parse(b.RRule)
	if err != nil {
		return time.Time{}, false
	}
	return rule.Next(first, recurrence.Day(*b.PaidThrough))
}

// Status is where a bill stands on one day. Days counts from that day to Due
// and is negative once overdue.
type Status struct {
	State State      `json:"state"`
	Due   *time.Time `json:"due"`
	Days  int        `json:"days"`
}

// Evaluate reports b's status on today's calendar day. Autopay bills never go
// overdue: due dates already past are taken as paid.
func Evaluate(b model.Bill, today time.Time) Status {
	day := recurrence.Day(today)
	due, ok := NextUnpaid(b)
	if ok && b.AutoPay && due.Before(day) {
		due, ok = nextOnOrAfter(b, day)
	}
	if !ok {
		return Status{State: StatePaid}
	}

	days := int(due.Sub(day).Hours() / 24)
	st := Status{Due: &due, Days: days}
	switch {
	case days < 0:
		st.State = StateOverdue
	case days <= SoonDays:
		st.State = StateDueSoon
	default:
		st.State = StateUpcoming
	}
	return st
}

func nextOnOrAfter(b model.Bill, day time.Time) (time.Time, bool) {
	if b.RRule == "" {
		return time.Time{}, false
	}
	rule, err := recurrence.Parse(b.RRule)
	if err != nil {
		return time.Time{}, false
	}
	return rule.Next(recurrence.Day(b.FirstDue), day.Add(-time.Nanosecond))
}

// Entry is a bill with its status on one day.
type Entry struct {
	model.Bill
	Status Status `json:"status"`
}

var stateOrder = map[State]int{StateOverdue: 0, StateDueSoon: 1, StateUpcoming: 2, StatePaid: 3}

// Summarize evaluates every bill on today, most urgent first.
func Summarize(list []model.Bill, today time.Time) []Entry {
	out := make([]Entry, len(list))
	for i, b := range list {
		out[i] = Entry{Bill: b, Status: Evaluate(b, today)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Status.State != b.Status.State {
			return stateOrder[a.Status.State] < stateOrder[b.Status.State]
		}
		if a.Status.Due != nil && b.Status.Due != nil && !a.Status.Due.Equal(*b.Status.Due) {
			return a.Status.Due.Before(*b.Status.Due)
		}
		return a.ID < b.ID
	})
	return out
}

// Outstanding totals the amounts of bills that are overdue or due soon,
// excluding autopay bills.
func Outstanding(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		if e.AutoPay {
			continue
		}
		if e.Status.State == StateOverdue || e.Status.State == StateDueSoon {
			total += e.AmountCents
		}
	}
	return total
}
