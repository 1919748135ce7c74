// Package recurrence parses the RRULE subset the calendar, bills and routines
// store, and expands a rule into concrete dates.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Freq string

const (
	Daily   Freq = "DAILY"
	Weekly  Freq = "WEEKLY"
	Monthly Freq = "MONTHLY"
	Yearly  Freq = "YEARLY"
)

// Rule repeats from an anchor date. Interval below 1 means 1. ByDay applies
// to weekly rules and ByMonthDay to monthly rules; when unset, both fall back
// to the anchor's weekday or day of month. A rule stops after Count
// occurrences or once past Until, whichever is set.
type Rule struct {
	Freq       Freq
	Interval   int
	ByDay      []time.Weekday
	ByMonthDay int
	Count      int
	Until      *time.Time
}

var dayCodes = map[string]time.Weekday{
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
	"SU": time.Sunday,
}

var dayNames = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

const (
	untilLayout     = "20060102T150405Z"
	untilDateLayout = "20060102"
)

// Parse reads a rule such as "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,TH". A leading
// "RRULE:" is accepted.
func Parse(s string) (Rule, error) {
	r := Rule{Interval: 1}
	s = strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")
	if s == "" {
		return r, errors.New("empty rule")
	}

	for _, part := range strings.Split(s, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok || val == "" {
			return r, fmt.Errorf("malformed rule part %q", part)
		}
		switch strings.ToUpper(key) {
		case "FREQ":
			switch f := Freq(strings.ToUpper(val)); f {
			case Daily, Weekly, Monthly, Yearly:
				r.Freq = f
			default:
				return r, fmt.Errorf("unsupported frequency %q", val)
			}
		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return r, fmt.Errorf("invalid interval %q", val)
			}
			r.Interval = n
		case "BYDAY":
			for _, code := range strings.Split(val, ",") {
				wd, ok := dayCodes[strings.ToUpper(strings.TrimSpace(code))]
				if !ok {
					return r, fmt.Errorf("invalid day %q", code)
				}
				r.ByDay = append(r.ByDay, wd)
			}
		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 31 {
				return r, fmt.Errorf("invalid month day %q", val)
			}
			r.ByMonthDay = n
		case "COUNT":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return r, fmt.Errorf("invalid count %q", val)
			}
			r.Count = n
		case "UNTIL":
			t, err := time.Parse(untilLayout, val)
			if err != nil {
				t, err = time.Parse(untilDateLayout, val)
				if err != nil {
					return r, fmt.Errorf("invalid until %q", val)
				}
				// A bare date includes that whole day.
				t = t.Add(24*time.Hour - time.Second)
			}
			r.Until = &t
		default:
			return r, fmt.Errorf("unsupported rule part %q", key)
		}
	}

	if r.Freq == "" {
		return r, errors.New("rule has no FREQ")
	}
	if r.Count > 0 && r.Until != nil {
		return r, errors.New("rule cannot set both COUNT and UNTIL")
	}
	if len(r.ByDay) > 0 && r.Freq != Weekly {
		return r, errors.New("BYDAY needs FREQ=WEEKLY")
	}
	if r.ByMonthDay > 0 && r.Freq != Monthly {
		return r, errors.New("BYMONTHDAY needs FREQ=MONTHLY")
	}
	r.ByDay = weekOrder(r.ByDay)
	return r, nil
}

// weekOrder sorts days Monday first and drops repeats.
func weekOrder(days []time.Weekday) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[time.Weekday]bool, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return mondayIndex(out[i]) < mondayIndex(out[j]) })
	return out
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// String formats r the way Parse reads it.
func (r Rule) String() string {
	parts := []string{"FREQ=" + string(r.Freq)}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if len(r.ByDay) > 0 {
		codes := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			codes[i] = dayNames[d]
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	if r.ByMonthDay > 0 {
		parts = append(parts, "BYMONTHDAY="+strconv.Itoa(r.ByMonthDay))
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.UTC().Format(untilLayout))
	}
	return strings.Join(parts, ";")
}

var units = map[Freq]string{Daily: "day", Weekly: "week", Monthly: "month", Yearly: "year"}

// Describe renders r for people, e.g. "every 2 weeks on Mon, Thu".
func (r Rule) Describe() string {
	var b strings.Builder
	if r.Interval > 1 {
		fmt.Fprintf(&b, "every %d %ss", r.Interval, units[r.Freq])
	} else {
		b.WriteString("every " + units[r.Freq])
	}
	if len(r.ByDay) > 0 {
		names := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			names[i] = d.String()[:3]
		}
		b.WriteString(" on " + strings.Join(names, ", "))
	}
	if r.ByMonthDay > 0 {
		fmt.Fprintf(&b, " on day %d", r.ByMonthDay)
	}
	switch {
	case r.Count == 1:
		b.WriteString(", once")
	case r.Count > 1:
		fmt.Fprintf(&b, ", %d times", r.Count)
	case r.Until != nil:
		b.WriteString(", until " + r.Until.Format("Jan 2, 2006"))
	}
	return b.String()
}
