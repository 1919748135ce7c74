package recurrence

import "time"

// maxPeriods bounds how many days, weeks, months or years a rule is walked
// from its anchor.
const maxPeriods = 10000

type Occurrence struct {
	Start time.Time
	End   time.Time
}

// each calls yield with every occurrence start of r anchored at start, in
// order, until yield returns false or the rule ends. The anchor is always the
// first occurrence when it matches the rule. Occurrences keep the anchor's
// wall clock time in its location, so they do not drift across DST changes.
// Months and years without the anchor's day are skipped, not clamped.
func (r Rule) each(start time.Time, yield func(time.Time) bool) {
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	y, m, d := start.Date()
	hh, mm, ss := start.Clock()
	ns, loc := start.Nanosecond(), start.Location()
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, hh, mm, ss, ns, loc)
	}

	n := 0
	emit := func(t time.Time) bool {
		if t.Before(start) {
			return true
		}
		if r.Until != nil && t.After(*r.Until) {
			return false
		}
		if r.Count > 0 && n >= r.Count {
			return false
		}
		n++
		return yield(t)
	}

	weekdays := r.ByDay
	if len(weekdays) == 0 {
		weekdays = []time.Weekday{start.Weekday()}
	}
	monday := d - mondayIndex(start.Weekday())
	monthDay := d
	if r.ByMonthDay > 0 {
		monthDay = r.ByMonthDay
	}

	for k := 0; k < maxPeriods; k++ {
		step := k * interval
		switch r.Freq {
		case Daily:
			if !emit(at(y, m, d+step)) {
				return
			}
		case Weekly:
			for _, wd := range weekdays {
				if !emit(at(y, m, monday+7*step+mondayIndex(wd))) {
					return
				}
			}
		case Monthly:
			first := time.Date(y, m+time.Month(step), 1, 0, 0, 0, 0, loc)
			if monthDay > daysIn(first.Year(), first.Month()) {
				continue
			}
			if !emit(at(first.Year(), first.Month(), monthDay)) {
				return
			}
		case Yearly:
			if d > daysIn(y+step, m) {
				continue
			}
			if !emit(at(y+step, m, d)) {
				return
			}
		default:
			return
		}
	}
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Expand returns the occurrences of an event spanning start to end that
// overlap [from, to). Instant events match when they start inside the range.
func Expand(r Rule, start, end, from, to time.Time) []Occurrence {
	dur := end.Sub(start)
	var out []Occurrence
	r.each(start, func(s time.Time) bool {
		if !s.Before(to) {
			return false
		}
		e := s.Add(dur)
		if e.After(from) || !s.Before(from) {
			out = append(out, Occurrence{Start: s, End: e})
		}
		return true
	})
	return out
}

// Next returns the first occurrence strictly after after.
func (r Rule) Next(start, after time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	r.each(start, func(s time.Time) bool {
		if s.After(after) {
			next, found = s, true
			return false
		}
		return true
	})
	return next, found
}

// Last returns the latest occurrence at or before at.
func (r Rule) Last(start, at time.Time) (time.Time, bool) {
	var last time.Time
	found := false
	r.each(start, func(s time.Time) bool {
		if s.After(at) {
			return false
		}
		last, found = s, true
		return true
	})
	return last, found
}

// Day returns the calendar day of t, in t's location, as midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
