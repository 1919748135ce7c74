package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/familyos/internal/database"
	"github.com/dukerupert/familyos/internal/feed"
	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/server"
)

func TestChatPrinterPrintsEachMessageOnce(t *testing.T) {
	var buf bytes.Buffer
	p := newChatPrinter(&buf)
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)

	m1 := model.Message{ID: 1, SenderName: "Ana", Text: "hi", CreatedAt: at}
	m2 := model.Message{ID: 2, SenderName: "Ben", Text: "hello", CreatedAt: at}

	p.render(feed.View{FamilyID: "f", Loading: true})
	p.render(feed.View{FamilyID: "f", Messages: []model.Message{m1}})
	p.render(feed.View{FamilyID: "f", Messages: []model.Message{m1, m2}})

	want := "09:30 #1 Ana: hi\n09:30 #2 Ben: hello\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestChatPrinterReportsDeletes(t *testing.T) {
	var buf bytes.Buffer
	p := newChatPrinter(&buf)
	m1 := model.Message{ID: 1, SenderName: "Ana", Text: "a"}
	m2 := model.Message{ID: 2, SenderName: "Ana", Text: "b"}
	m3 := model.Message{ID: 3, SenderName: "Ana", Text: "c"}

	p.render(feed.View{FamilyID: "f", Messages: []model.Message{m1, m2, m3}})
	buf.Reset()

	p.render(feed.View{FamilyID: "f", Messages: []model.Message{m1, m3}})
	if got := buf.String(); got != "[message 2 deleted]\n" {
		t.Errorf("after delete = %q", got)
	}

	// A loading or failed view says nothing about deletions.
	buf.Reset()
	p.render(feed.View{FamilyID: "f", Loading: true})
	p.render(feed.View{FamilyID: "f", Err: errors.New("boom")})
	if got := buf.String(); got != "-- connection problem: boom (retrying)\n" {
		t.Errorf("after error = %q", got)
	}

	// Messages older than the window scrolled out rather than being deleted.
	buf.Reset()
	p.render(feed.View{FamilyID: "f", Messages: []model.Message{m3}})
	if got := buf.String(); got != "" {
		t.Errorf("after window shift = %q", got)
	}
}

func TestChatPrinterReportsOldestDelete(t *testing.T) {
	var buf bytes.Buffer
	p := newChatPrinter(&buf)
	msgs := []model.Message{
		{ID: 1, SenderName: "Ana", Text: "a"},
		{ID: 2, SenderName: "Ana", Text: "b"},
		{ID: 3, SenderName: "Ana", Text: "c"},
	}

	p.render(feed.View{FamilyID: "f", Loading: true})
	p.render(feed.View{FamilyID: "f", Messages: msgs})
	buf.Reset()

	p.render(feed.View{FamilyID: "f", Messages: msgs[1:]})
	if got := buf.String(); got != "[message 1 deleted]\n" {
		t.Errorf("after deleting the oldest = %q", got)
	}

	// A live insert after the delete prints only the new message.
	buf.Reset()
	m4 := model.Message{ID: 4, SenderName: "Ben", Text: "d"}
	p.render(feed.View{FamilyID: "f", Messages: append(append([]model.Message(nil), msgs[1:]...), m4)})
	if got := buf.String(); !strings.HasSuffix(got, "#4 Ben: d\n") || strings.Contains(got, "deleted") {
		t.Errorf("after insert = %q", got)
	}
}

func TestChatPrinterFollowsFamilySwitch(t *testing.T) {
	var buf bytes.Buffer
	p := newChatPrinter(&buf)
	m1 := model.Message{ID: 1, SenderName: "Ana", Text: "a"}
	m2 := model.Message{ID: 2, SenderName: "Ben", Text: "b"}

	p.render(feed.View{FamilyID: "f", Messages: []model.Message{m1}})
	buf.Reset()

	p.render(feed.View{FamilyID: "g", Loading: true})
	p.render(feed.View{FamilyID: "g", Messages: []model.Message{m2}})
	got := buf.String()
	if !strings.HasPrefix(got, "-- now following family g\n") || !strings.HasSuffix(got, "#2 Ben: b\n") {
		t.Errorf("after switch = %q", got)
	}
	if strings.Contains(got, "deleted") {
		t.Errorf("switch reported the old family's messages as deleted: %q", got)
	}

	buf.Reset()
	p.render(feed.View{})
	if got := buf.String(); got != "-- no active family\n" {
		t.Errorf("after sign-out = %q", got)
	}
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  model.Message
		want string
	}{
		{
			name: "media with caption",
			msg:  model.Message{ID: 7, SenderName: "Ana", Text: "look", MediaURL: "https://m/x.jpg", MediaKind: model.MediaImage},
			want: "#7 Ana: look [image https://m/x.jpg]",
		},
		{
			name: "reply to deleted",
			msg: model.Message{ID: 8, SenderName: "Ben", Text: "ok",
				ReplyTo: &model.ReplySnapshot{SenderName: "Ana", Text: "gone", IsDeleted: true}},
			want: "#8 Ben: (re Ana: deleted message) ok",
		},
		{
			name: "reply to media",
			msg: model.Message{ID: 9, SenderName: "Ben", Text: "nice",
				ReplyTo: &model.ReplySnapshot{SenderName: "Ana", MediaKind: model.MediaVideo}},
			want: "#9 Ben: (re Ana: video) nice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMessage(tt.msg)
			// Drop the local timestamp prefix.
			if i := strings.Index(got, " "); i >= 0 {
				got = got[i+1:]
			}
			if got != tt.want {
				t.Errorf("formatMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunHelpAndUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), nil, strings.NewReader(""), &out); err != nil {
		t.Fatalf("run with no args: %v", err)
	}
	for _, name := range []string{"login", "chat", "shopping", "tasks", "calendar", "bills", "routines"} {
		if !strings.Contains(out.String(), name) {
			t.Errorf("help does not list %q", name)
		}
	}

	err := run(context.Background(), []string{"frobnicate"}, strings.NewReader(""), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unknown command err = %v", err)
	}

	if err := run(context.Background(), []string{"use"}, strings.NewReader(""), io.Discard); !errors.Is(err, errUsage) {
		t.Errorf("missing arg err = %v, want errUsage", err)
	}
}

// cli runs commands against one server and state file.
type cli struct {
	t     *testing.T
	url   string
	state string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	srv := server.New(db, server.Config{JWTSecret: "test-secret"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &cli{t: t, url: ts.URL, state: filepath.Join(t.TempDir(), "state.db")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	full := append([]string{"--url", c.url, "--state", c.state, "--log-level", "error"}, args...)
	err := run(context.Background(), full, strings.NewReader(""), &out)
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("familyos %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestSessionFamiliesAndLists(t *testing.T) {
	c := newCLI(t)

	if _, err := c.run("families"); err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Fatalf("families before login err = %v", err)
	}

	c.mustRun("signup", "--email", "ana@example.com", "--password", "hunter22", "--name", "Ana")
	c.mustRun("create-family", "Rivera", "Home", "--as", "Mom")

	out := c.mustRun("families")
	if !strings.Contains(out, "Rivera Home") || !strings.Contains(out, "*") {
		t.Errorf("families output = %q", out)
	}

	out = c.mustRun("shopping", "add", "bananas", "--qty", "6")
	if !strings.Contains(out, "Produce") || !strings.Contains(out, "bananas (6)") {
		t.Errorf("shopping output = %q", out)
	}

	out = c.mustRun("tasks", "add", "Water plants", "--due", "2020-01-02")
	if !strings.Contains(out, "Water plants") || !strings.Contains(out, "(overdue)") {
		t.Errorf("tasks output = %q", out)
	}

	out = c.mustRun("send", "dinner at six")
	if !strings.Contains(out, "Sent.") {
		t.Errorf("send output = %q", out)
	}

	c.mustRun("logout")
	if _, err := c.run("members"); err == nil {
		t.Error("members after logout succeeded")
	}

	// The session and selection come back from the state file.
	c.mustRun("login", "--email", "ana@example.com", "--password", "hunter22")
	out = c.mustRun("members")
	if !strings.Contains(out, "Mom") || !strings.Contains(out, "owner") {
		t.Errorf("members output = %q", out)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	c := newCLI(t)
	c.mustRun("signup", "--email", "ben@example.com", "--password", "hunter22")

	_, err := c.run("login", "--email", "ben@example.com", "--password", "wrong-pass")
	if err == nil || !strings.Contains(err.Error(), "invalid email or password") {
		t.Errorf("login err = %v", err)
	}
}

func TestCalendarBillsAndRoutines(t *testing.T) {
	c := newCLI(t)
	c.mustRun("signup", "--email", "ana@example.com", "--password", "hunter22", "--name", "Ana")
	c.mustRun("create-family", "Rivera")

	c.mustRun("calendar", "add", "Dentist", "--at", "2026-03-03 10:00", "--for", "30m")
	out := c.mustRun("calendar", "--from", "2026-03-02", "--days", "7")
	if !strings.Contains(out, "Tue Mar 3") || !strings.Contains(out, "10:00-10:30") || !strings.Contains(out, "Dentist") {
		t.Errorf("calendar output = %q", out)
	}
	c.mustRun("calendar", "add", "Swim", "--at", "2026-03-02 17:00", "--repeat", "FREQ=WEEKLY")
	out = c.mustRun("calendar", "--from", "2026-03-09", "--days", "7")
	if !strings.Contains(out, "Swim  (repeats)") || strings.Contains(out, "Dentist") {
		t.Errorf("next week output = %q", out)
	}

	out = c.mustRun("bills", "add", "Rent", "--amount", "1200", "--due", "2020-01-01", "--repeat", "FREQ=MONTHLY")
	if !strings.Contains(out, "Rent  $1200.00  overdue since Wed Jan 1, every month") {
		t.Errorf("bills output = %q", out)
	}
	if !strings.Contains(out, "To pay soon: $1200.00") {
		t.Errorf("bills total missing: %q", out)
	}
	out = c.mustRun("bills", "pay", "1")
	if !strings.Contains(out, "overdue since Sat Feb 1") {
		t.Errorf("after pay = %q", out)
	}

	out = c.mustRun("routines", "add", "Feed the cat", "--repeat", "FREQ=DAILY", "--start", "2020-01-01")
	if !strings.Contains(out, "[ ]    1  Feed the cat, every day") {
		t.Errorf("routines output = %q", out)
	}
	out = c.mustRun("routines", "done", "1")
	if !strings.Contains(out, "[x]    1  Feed the cat") {
		t.Errorf("after done = %q", out)
	}
	out = c.mustRun("routines", "--today")
	if !strings.Contains(out, "Feed the cat") {
		t.Errorf("today = %q", out)
	}
}
