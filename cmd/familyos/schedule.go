package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/dukerupert/familyos/internal/bills"
	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/recurrence"
	"github.com/dukerupert/familyos/internal/remote"
	"github.com/dukerupert/familyos/internal/routine"
)

const dateLayout = "2006-01-02"

// describeRule renders a stored rule for listings, or "" for one-offs.
func describeRule(rule string) string {
	if rule == "" {
		return ""
	}
	r, err := recurrence.Parse(rule)
	if err != nil {
		return rule
	}
	return r.Describe()
}

func parseLocalDate(flag, s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", flag, s)
	}
	return t, nil
}

func calendarCommand() *command {
	var (
		at     string
		length time.Duration
		allDay bool
		repeat string
		from   string
		days   int
	)
	return &command{
		Summary: "Show or change the family calendar",
		Usage:   "calendar [add <title> --at \"YYYY-MM-DD HH:MM\" [--for 1h] [--all-day] [--repeat RRULE] | remove <id>] [--from YYYY-MM-DD] [--days n]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&at, "at", "", "start of a new event, \"YYYY-MM-DD HH:MM\" or YYYY-MM-DD for all-day")
			fs.DurationVar(&length, "for", time.Hour, "length of a new event")
			fs.BoolVar(&allDay, "all-day", false, "make a new event last the whole day")
			fs.StringVar(&repeat, "repeat", "", "repeat a new event, e.g. FREQ=WEEKLY;BYDAY=MO,WE")
			fs.StringVar(&from, "from", "", "first day to show (default today)")
			fs.IntVar(&days, "days", 7, "number of days to show")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				switch args[0] {
				case "add":
					if len(args) < 2 {
						return errors.New("usage: calendar add <title> --at \"YYYY-MM-DD HH:MM\"")
					}
					ev, err := newEventFromFlags(strings.Join(args[1:], " "), at, length, allDay, repeat)
					if err != nil {
						return err
					}
					if _, err := a.client.AddEvent(ctx, m.FamilyID, ev); err != nil {
						return err
					}
				case "remove":
					if len(args) < 2 {
						return errors.New("usage: calendar remove <id>")
					}
					id, err := parseID(args[1])
					if err != nil {
						return err
					}
					if err := a.client.DeleteEvent(ctx, m.FamilyID, id); err != nil {
						return err
					}
				default:
					return fmt.Errorf("unknown calendar action %q", args[0])
				}
			}

			y, mo, d := time.Now().Date()
			start := time.Date(y, mo, d, 0, 0, 0, 0, time.Local)
			if from != "" {
				if start, err = parseLocalDate("from", from); err != nil {
					return err
				}
			}
			if days < 1 {
				days = 1
			}
			list, err := a.client.Calendar(ctx, m.FamilyID, start, start.AddDate(0, 0, days))
			if err != nil {
				return err
			}
			printCalendar(a, list)
			return nil
		},
	}
}

func newEventFromFlags(title, at string, length time.Duration, allDay bool, repeat string) (remote.NewEvent, error) {
	ev := remote.NewEvent{Title: title, AllDay: allDay, RRule: repeat}
	if at == "" {
		return ev, errors.New("--at is required for a new event")
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", at, time.Local)
	if err != nil {
		start, err = time.ParseInLocation(dateLayout, at, time.Local)
		if err != nil {
			return ev, fmt.Errorf("invalid --at %q: want \"YYYY-MM-DD HH:MM\" or YYYY-MM-DD", at)
		}
		ev.AllDay = true
	}
	ev.StartsAt = start
	if !ev.AllDay {
		end := start.Add(length)
		ev.EndsAt = &end
	}
	return ev, nil
}

func printCalendar(a *app, list []model.Occurrence) {
	if len(list) == 0 {
		fmt.Fprintln(a.out, "Nothing on the calendar.")
		return
	}
	var day string
	for _, o := range list {
		start := o.StartsAt.Local()
		if d := start.Format("Mon Jan 2"); d != day {
			day = d
			fmt.Fprintln(a.out, day)
		}
		when := "all day    "
		if !o.AllDay {
			when = start.Format("15:04") + "-" + o.EndsAt.Local().Format("15:04")
		}
		line := fmt.Sprintf("  %s %4d  %s", when, o.EventID, o.Title)
		if o.Location != "" {
			line += " @ " + o.Location
		}
		if o.Recurring {
			line += "  (repeats)"
		}
		fmt.Fprintln(a.out, line)
	}
}

// parseCents reads an amount such as "12.50" as whole cents.
func parseCents(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return int64(math.Round(f * 100)), nil
}

func formatCents(c int64) string {
	return fmt.Sprintf("$%d.%02d", c/100, c%100)
}

func billsCommand() *command {
	var (
		amount  string
		due     string
		repeat  string
		autopay bool
	)
	return &command{
		Summary: "Show or change the family's bills",
		Usage:   "bills [add <name> --amount 12.50 --due YYYY-MM-DD [--repeat RRULE] [--autopay] | pay <id> | remove <id>]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&amount, "amount", "0", "amount of a new bill")
			fs.StringVar(&due, "due", "", "first due date of a new bill (YYYY-MM-DD)")
			fs.StringVar(&repeat, "repeat", "", "repeat a new bill, e.g. FREQ=MONTHLY")
			fs.BoolVar(&autopay, "autopay", false, "a new bill pays itself")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				switch args[0] {
				case "add":
					if len(args) < 2 {
						return errors.New("usage: bills add <name> --amount 12.50 --due YYYY-MM-DD")
					}
					cents, err := parseCents(amount)
					if err != nil {
						return err
					}
					if _, err := parseLocalDate("due", due); err != nil {
						return err
					}
					_, err = a.client.AddBill(ctx, m.FamilyID, remote.NewBill{
						Name:        strings.Join(args[1:], " "),
						AmountCents: cents,
						FirstDue:    due,
						RRule:       repeat,
						AutoPay:     autopay,
					})
					if err != nil {
						return err
					}
				case "pay", "remove":
					if len(args) < 2 {
						return fmt.Errorf("usage: bills %s <id>", args[0])
					}
					id, err := parseID(args[1])
					if err != nil {
						return err
					}
					if args[0] == "pay" {
						_, err = a.client.PayBill(ctx, m.FamilyID, id)
					} else {
						err = a.client.DeleteBill(ctx, m.FamilyID, id)
					}
					if errors.Is(err, remote.ErrConflict) {
						return errors.New("that bill is already paid")
					}
					if errors.Is(err, remote.ErrForbidden) {
						return errors.New("children cannot change bills")
					}
					if err != nil {
						return err
					}
				default:
					return fmt.Errorf("unknown bills action %q", args[0])
				}
			}

			list, err := a.client.Bills(ctx, m.FamilyID)
			if err != nil {
				return err
			}
			printBills(a, bills.Summarize(list, time.Now()))
			return nil
		},
	}
}

func billStatus(st bills.Status) string {
	switch st.State {
	case bills.StateOverdue:
		return fmt.Sprintf("overdue since %s", st.Due.Format("Mon Jan 2"))
	case bills.StateDueSoon:
		if st.Days == 0 {
			return "due today"
		}
		return fmt.Sprintf("due in %d days", st.Days)
	case bills.StateUpcoming:
		return "due " + st.Due.Format("Mon Jan 2")
	}
	return "paid"
}

func printBills(a *app, entries []bills.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No bills.")
		return
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %4d  %s  %s  %s", e.ID, e.Name, formatCents(e.AmountCents), billStatus(e.Status))
		if rule := describeRule(e.RRule); rule != "" {
			line += ", " + rule
		}
		if e.AutoPay {
			line += " (autopay)"
		}
		fmt.Fprintln(a.out, line)
	}
	if total := bills.Outstanding(entries); total > 0 {
		fmt.Fprintf(a.out, "To pay soon: %s\n", formatCents(total))
	}
}

func routinesCommand() *command {
	var (
		repeat   string
		start    string
		assignee int64
		today    bool
	)
	return &command{
		Summary: "Show or change the family's routines",
		Usage:   "routines [add <title> [--repeat RRULE] [--start YYYY-MM-DD] [--assignee member-id] | done <id> | remove <id>] [--today]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&repeat, "repeat", "", "schedule of a new routine, e.g. FREQ=WEEKLY;BYDAY=SA")
			fs.StringVar(&start, "start", "", "first day of a new routine (default today)")
			fs.Int64Var(&assignee, "assignee", 0, "member id to assign a new routine to")
			fs.BoolVar(&today, "today", false, "only show routines due today")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			m, err := a.activeMember(ctx)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				switch args[0] {
				case "add":
					if len(args) < 2 {
						return errors.New("usage: routines add <title>")
					}
					if start == "" {
						start = time.Now().Format(dateLayout)
					} else if _, err := parseLocalDate("start", start); err != nil {
						return err
					}
					r := remote.NewRoutine{Title: strings.Join(args[1:], " "), RRule: repeat, StartsOn: start}
					if assignee != 0 {
						r.AssigneeID = &assignee
					}
					if _, err := a.client.AddRoutine(ctx, m.FamilyID, r); err != nil {
						return err
					}
				case "done", "remove":
					if len(args) < 2 {
						return fmt.Errorf("usage: routines %s <id>", args[0])
					}
					id, err := parseID(args[1])
					if err != nil {
						return err
					}
					if args[0] == "done" {
						_, err = a.client.CompleteRoutine(ctx, m.FamilyID, id)
					} else {
						err = a.client.DeleteRoutine(ctx, m.FamilyID, id)
					}
					if err != nil {
						return err
					}
				default:
					return fmt.Errorf("unknown routines action %q", args[0])
				}
			}

			list, err := a.client.Routines(ctx, m.FamilyID)
			if err != nil {
				return err
			}
			now := time.Now()
			if today {
				due := list[:0]
				for _, r := range list {
					if routine.DueOn(r, now) {
						due = append(due, r)
					}
				}
				list = due
			}
			printRoutines(a, routine.Agenda(list, now))
			return nil
		},
	}
}

func printRoutines(a *app, entries []routine.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No routines.")
		return
	}
	for _, e := range entries {
		box := "[ ]"
		if e.Status == routine.StatusDone {
			box = "[x]"
		}
		line := fmt.Sprintf("  %s %4d  %s", box, e.ID, e.Title)
		if rule := describeRule(e.RRule); rule != "" {
			line += ", " + rule
		}
		switch {
		case e.Status == routine.StatusOverdue:
			line += fmt.Sprintf("  (overdue since %s)", e.Due.Format("Mon Jan 2"))
		case e.Status == routine.StatusNotDue && e.Due != nil:
			line += "  next " + e.Due.Format("Mon Jan 2")
		}
		fmt.Fprintln(a.out, line)
	}
}
