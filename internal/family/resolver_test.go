package family

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukerupert/familyos/internal/model"
)

type memSelection struct {
	mu    sync.Mutex
	id    string
	saves []string
}

func (m *memSelection) LoadSelection(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

func (m *memSelection) SaveSelection(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	m.saves = append(m.saves, id)
	return nil
}

// fakeSource answers membership reads from a per-user table. When calls is
// set, each read announces itself with a release channel and blocks until
// the test closes it.
type fakeSource struct {
	mu    sync.Mutex
	lists map[int64][]model.Membership
	err   error
	calls chan chan struct{}
}

func (f *fakeSource) ActiveMemberships(ctx context.Context, userID int64) ([]model.Membership, error) {
	f.mu.Lock()
	list, err, calls := f.lists[userID], f.err, f.calls
	f.mu.Unlock()
	if calls != nil {
		release := make(chan struct{})
		calls <- release
		<-release
	}
	return list, err
}

func (f *fakeSource) set(userID int64, list []model.Membership) {
	f.mu.Lock()
	f.lists[userID] = list
	f.mu.Unlock()
}

func members(ids ...string) []model.Membership {
	out := make([]model.Membership, len(ids))
	for i, id := range ids {
		out[i] = model.Membership{FamilyID: id, FamilyName: "Family " + id, Role: model.RoleAdult, Status: model.StatusActive}
	}
	return out
}

func newTestResolver(src *fakeSource, sel *memSelection) *Resolver {
	return NewResolver(src, sel, slog.Default())
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		list      []model.Membership
		want      string
	}{
		{"present kept", "b", members("a", "b"), "b"},
		{"absent takes first", "x", members("a", "b"), "a"},
		{"unset takes first", "", members("a", "b"), "a"},
		{"empty list clears", "a", nil, ""},
		{"unset and empty", "", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reconcile(tt.candidate, tt.list); got != tt.want {
				t.Errorf("Reconcile(%q) = %q, want %q", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestStaleSelectionOverridden(t *testing.T) {
	src := &fakeSource{lists: map[int64][]model.Membership{1: members("fam-Y", "fam-Z")}}
	sel := &memSelection{id: "fam-X"}
	r := newTestResolver(src, sel)
	ctx := context.Background()

	if err := r.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := r.Current(); got != "fam-X" {
		t.Fatalf("candidate = %q, want fam-X", got)
	}
	if err := r.SetIdentity(ctx, 1); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	if got := r.Current(); got != "fam-Y" {
		t.Errorf("selection = %q, want fam-Y", got)
	}
	if sel.id != "fam-Y" {
		t.Errorf("persisted = %q, want fam-Y", sel.id)
	}
}

func TestNoMembershipsStaysNull(t *testing.T) {
	src := &fakeSource{lists: map[int64][]model.Membership{}}
	sel := &memSelection{}
	r := newTestResolver(src, sel)
	ctx := context.Background()

	r.Load(ctx)
	if err := r.SetIdentity(ctx, 1); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	if got := r.Current(); got != "" {
		t.Errorf("selection = %q, want empty", got)
	}
	if got := r.Available(); len(got) != 0 {
		t.Errorf("available = %v, want empty", got)
	}
	if len(sel.saves) != 0 {
		t.Errorf("saves = %v, want none", sel.saves)
	}
}

func TestInvitedMembershipsNotSelectable(t *testing.T) {
	list := members("a", "b")
	list[0].Status = model.StatusInvited
	src := &fakeSource{lists: map[int64][]model.Membership{1: list}}
	r := newTestResolver(src, &memSelection{})
	ctx := context.Background()

	r.SetIdentity(ctx, 1)
	if got := r.Current(); got != "b" {
		t.Errorf("selection = %q, want b", got)
	}
	if r.Select(ctx, "a") {
		t.Error("selecting an invitation should fail")
	}
}

func TestSelect(t *testing.T) {
	src := &fakeSource{lists: map[int64][]model.Membership{1: members("a", "b")}}
	sel := &memSelection{}
	r := newTestResolver(src, sel)
	ctx := context.Background()
	r.SetIdentity(ctx, 1)

	if r.Select(ctx, "nope") {
		t.Error("Select(nope) = true, want false")
	}
	if got := r.Current(); got != "a" {
		t.Errorf("selection after failed select = %q, want a", got)
	}

	if !r.Select(ctx, "b") {
		t.Fatal("Select(b) = false, want true")
	}
	if got := r.Current(); got != "b" || sel.id != "b" {
		t.Errorf("selection = %q persisted = %q, want b", got, sel.id)
	}
	m, ok := r.Active()
	if !ok || m.FamilyID != "b" {
		t.Errorf("Active() = %+v, %v", m, ok)
	}
}

func TestRefreshErrorKeepsSelection(t *testing.T) {
	src := &fakeSource{lists: map[int64][]model.Membership{1: members("a", "b")}}
	r := newTestResolver(src, &memSelection{})
	ctx := context.Background()
	r.SetIdentity(ctx, 1)
	r.Select(ctx, "b")

	src.mu.Lock()
	src.err = errors.New("network down")
	src.mu.Unlock()

	if err := r.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	if r.Err() == nil {
		t.Error("Err() = nil, want error state")
	}
	if got := r.Available(); len(got) != 0 {
		t.Errorf("available = %v, want empty on error", got)
	}
	if got := r.Current(); got != "b" {
		t.Errorf("selection = %q, want b kept", got)
	}
	if _, ok := r.Active(); ok {
		t.Error("Active() should report no match while in error")
	}

	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()
	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if r.Err() != nil || r.Current() != "b" {
		t.Errorf("after recovery err = %v selection = %q", r.Err(), r.Current())
	}
}

func TestSignOutClearsSelection(t *testing.T) {
	src := &fakeSource{lists: map[int64][]model.Membership{1: members("a")}}
	sel := &memSelection{}
	r := newTestResolver(src, sel)
	ctx := context.Background()
	r.SetIdentity(ctx, 1)

	if err := r.SetIdentity(ctx, 0); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if r.Current() != "" || sel.id != "" {
		t.Errorf("selection = %q persisted = %q, want cleared", r.Current(), sel.id)
	}
	if len(r.Available()) != 0 {
		t.Error("available should be empty after sign-out")
	}
}

func TestIdentitySwapDiscardsInFlightRead(t *testing.T) {
	src := &fakeSource{
		lists: map[int64][]model.Membership{
			1: members("fam-A"),
			2: members("fam-B"),
		},
		calls: make(chan chan struct{}),
	}
	sel := &memSelection{}
	r := newTestResolver(src, sel)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- r.SetIdentity(ctx, 1) }()
	releaseA := <-src.calls

	second := make(chan error, 1)
	go func() { second <- r.SetIdentity(ctx, 2) }()
	releaseB := <-src.calls

	close(releaseB)
	if err := <-second; err != nil {
		t.Fatalf("identity 2: %v", err)
	}
	close(releaseA)
	if err := <-first; err != nil {
		t.Fatalf("identity 1: %v", err)
	}

	if got := r.Current(); got != "fam-B" {
		t.Errorf("selection = %q, want fam-B", got)
	}
	if got := r.Available(); len(got) != 1 || got[0].FamilyID != "fam-B" {
		t.Errorf("available = %v, want only fam-B", got)
	}
	if sel.id != "fam-B" {
		t.Errorf("persisted = %q, want fam-B", sel.id)
	}
}

func TestOlderRefreshDiscarded(t *testing.T) {
	src := &fakeSource{lists: map[int64][]model.Membership{1: members("a", "b")}}
	r := newTestResolver(src, &memSelection{})
	ctx := context.Background()
	r.SetIdentity(ctx, 1)
	r.Select(ctx, "b")

	src.mu.Lock()
	src.calls = make(chan chan struct{})
	src.mu.Unlock()

	// The older read sees a list without "b"; the newer one still has it.
	src.set(1, members("a"))
	older := make(chan error, 1)
	go func() { older <- r.Refresh(ctx) }()
	releaseOld := <-src.calls

	src.set(1, members("a", "b", "c"))
	newer := make(chan error, 1)
	go func() { newer <- r.Refresh(ctx) }()
	releaseNew := <-src.calls

	close(releaseNew)
	if err := <-newer; err != nil {
		t.Fatalf("newer refresh: %v", err)
	}
	close(releaseOld)
	if err := <-older; err != nil {
		t.Fatalf("older refresh: %v", err)
	}

	if got := len(r.Available()); got != 3 {
		t.Errorf("available = %d, want 3", got)
	}
	if got := r.Current(); got != "b" {
		t.Errorf("selection = %q, want b", got)
	}
}

func TestSubscribeNotifies(t *testing.T) {
	src := &fakeSource{lists: map[int64][]model.Membership{1: members("a", "b")}}
	r := newTestResolver(src, &memSelection{})
	ctx := context.Background()

	var got []string
	cancel := r.Subscribe(func(st State) { got = append(got, st.Selection) })
	r.SetIdentity(ctx, 1)
	r.Select(ctx, "b")
	cancel()
	r.Select(ctx, "a")

	if len(got) == 0 || got[len(got)-1] != "b" {
		t.Errorf("notifications = %v, want last b", got)
	}
}
