// Package family resolves which family the signed-in user is looking at.
//
// The selection is a single persisted family id. It is loaded as an
// unvalidated candidate at start-up and re-checked against the user's active
// memberships every time they are read.
package family

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/familyos/internal/backend"
	"github.com/dukerupert/familyos/internal/model"
)

// SelectionStore persists the active family id. An empty id means none.
type SelectionStore interface {
	LoadSelection(ctx context.Context) (string, error)
	SaveSelection(ctx context.Context, familyID string) error
}

// Reconcile applies the selection rule: keep candidate if it is one of the
// memberships, otherwise take the first membership, or "" if there are none.
func Reconcile(candidate string, memberships []model.Membership) string {
	if len(memberships) == 0 {
		return ""
	}
	for _, m := range memberships {
		if m.FamilyID == candidate {
			return candidate
		}
	}
	return memberships[0].FamilyID
}

// State is a point-in-time copy of the resolver.
type State struct {
	UserID    int64
	Selection string
	Available []model.Membership
	Err       error
}

// Resolver owns the active family selection for one process.
type Resolver struct {
	src    backend.Memberships
	prefs  SelectionStore
	logger *slog.Logger

	mu        sync.Mutex
	userID    int64
	epoch     uint64 // bumped on every identity change
	issued    uint64 // last refresh sequence handed out
	applied   uint64 // sequence of the last refresh whose result was used
	current   string
	available []model.Membership
	err       error

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

func NewResolver(src backend.Memberships, prefs SelectionStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		src:    src,
		prefs:  prefs,
		logger: logger,
		subs:   make(map[int]func(State)),
	}
}

// Load reads the persisted selection as the starting candidate.
func (r *Resolver) Load(ctx context.Context) error {
	id, err := r.prefs.LoadSelection(ctx)
	if err != nil {
		return fmt.Errorf("load selection: %w", err)
	}
	r.mu.Lock()
	r.current = id
	r.mu.Unlock()
	r.notify()
	return nil
}

// SetIdentity switches the signed-in user and refreshes. A zero userID signs
// out: the available list and the persisted selection are cleared.
func (r *Resolver) SetIdentity(ctx context.Context, userID int64) error {
	r.mu.Lock()
	if userID == r.userID && userID != 0 {
		r.mu.Unlock()
		return r.Refresh(ctx)
	}
	r.userID = userID
	r.epoch++
	r.available = nil
	r.err = nil
	if userID != 0 {
		r.mu.Unlock()
		r.notify()
		return r.Refresh(ctx)
	}

	r.current = ""
	err := r.prefs.SaveSelection(ctx, "")
	r.mu.Unlock()
	r.notify()
	if err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return nil
}

// Refresh re-reads the user's memberships and reconciles the selection.
// Results from a superseded identity, or older than a refresh that already
// completed, are discarded.
func (r *Resolver) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if r.userID == 0 {
		r.mu.Unlock()
		return nil
	}
	userID, epoch := r.userID, r.epoch
	r.issued++
	seq := r.issued
	r.mu.Unlock()

	list, err := r.src.ActiveMemberships(ctx, userID)

	r.mu.Lock()
	if epoch != r.epoch || seq < r.applied {
		r.mu.Unlock()
		r.logger.Debug("discarding stale membership read", "user_id", userID, "seq", seq)
		return nil
	}
	r.applied = seq

	if err != nil {
		r.available = nil
		r.err = err
		r.mu.Unlock()
		r.notify()
		return fmt.Errorf("query memberships: %w", err)
	}

	r.available = activeOnly(list)
	r.err = nil
	next := Reconcile(r.current, r.available)
	var saveErr error
	if next != r.current {
		r.logger.Info("active family changed", "from", r.current, "to", next)
		r.current = next
		saveErr = r.prefs.SaveSelection(ctx, next)
	}
	r.mu.Unlock()
	r.notify()

	if saveErr != nil {
		return fmt.Errorf("save selection: %w", saveErr)
	}
	return nil
}

// Select makes familyID the active family. It is a no-op returning false when
// familyID is not one of the available families.
func (r *Resolver) Select(ctx context.Context, familyID string) bool {
	r.mu.Lock()
	if !contains(r.available, familyID) {
		r.mu.Unlock()
		return false
	}
	changed := familyID != r.current
	r.current = familyID
	if err := r.prefs.SaveSelection(ctx, familyID); err != nil {
		r.logger.Warn("persist selection", "family_id", familyID, "error", err)
	}
	r.mu.Unlock()
	if changed {
		r.notify()
	}
	return true
}

// Current returns the selected family id, or "" when none.
func (r *Resolver) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Available returns the user's active memberships in query order.
func (r *Resolver) Available() []model.Membership {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Membership(nil), r.available...)
}

// Active returns the membership matching the current selection. The second
// result is false while the selection has no matching entry, for example
// after a failed refresh.
func (r *Resolver) Active() (model.Membership, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.available {
		if m.FamilyID == r.current {
			return m, true
		}
	}
	return model.Membership{}, false
}

// Err returns the error of the last membership read, if it failed.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Resolver) stateLocked() State {
	return State{
		UserID:    r.userID,
		Selection: r.current,
		Available: append([]model.Membership(nil), r.available...),
		Err:       r.err,
	}
}

// Subscribe registers fn to be called with the new state after every change.
// The returned func removes it.
func (r *Resolver) Subscribe(fn func(State)) func() {
	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Resolver) notify() {
	st := r.State()

	r.subMu.Lock()
	fns := make([]func(State), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func activeOnly(list []model.Membership) []model.Membership {
	out := make([]model.Membership, 0, len(list))
	for _, m := range list {
		if m.Status == model.StatusActive {
			out = append(out, m)
		}
	}
	return out
}

func contains(list []model.Membership, familyID string) bool {
	if familyID == "" {
		return false
	}
	for _, m := range list {
		if m.FamilyID == familyID {
			return true
		}
	}
	return false
}
