package feed

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukerupert/familyos/internal/family"
	"github.com/dukerupert/familyos/internal/model"
)

type fixedMemberships struct {
	list []model.Membership
}

func (f fixedMemberships) ActiveMemberships(ctx context.Context, userID int64) ([]model.Membership, error) {
	return f.list, nil
}

type memSelection struct {
	mu sync.Mutex
	id string
}

func (m *memSelection) LoadSelection(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

func (m *memSelection) SaveSelection(ctx context.Context, familyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = familyID
	return nil
}

func TestFollowTracksSelection(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.messages["a"] = []model.Message{{ID: 1, FamilyID: "a", Text: "in a"}}
	src.messages["b"] = []model.Message{{ID: 2, FamilyID: "b", Text: "in b"}}

	res := family.NewResolver(fixedMemberships{list: []model.Membership{
		{ID: 10, FamilyID: "a", FamilyName: "A", Status: model.StatusActive},
		{ID: 11, FamilyID: "b", FamilyName: "B", Status: model.StatusActive},
	}}, &memSelection{}, slog.Default())

	rec := NewReconciler(src, slog.Default())
	defer rec.Close()
	stop := Follow(ctx, res, rec)
	defer stop()

	if got := rec.View().FamilyID; got != "" {
		t.Fatalf("watching %q before sign-in", got)
	}

	if err := res.SetIdentity(ctx, 1); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	waitFor(t, "family a", func() bool {
		v := rec.View()
		return v.FamilyID == "a" && equalIDs(ids(v.Messages), []int64{1})
	})

	if !res.Select(ctx, "b") {
		t.Fatal("Select(b) = false")
	}
	waitFor(t, "family b", func() bool {
		v := rec.View()
		return v.FamilyID == "b" && equalIDs(ids(v.Messages), []int64{2})
	})
	if sub := src.sub("a"); sub != nil {
		waitFor(t, "family a released", func() bool {
			select {
			case <-sub.closed:
				return true
			default:
				return false
			}
		})
	}

	if err := res.SetIdentity(ctx, 0); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if v := rec.View(); v.FamilyID != "" || len(v.Messages) != 0 {
		t.Errorf("view after sign-out = %+v", v)
	}
}

func TestFollowIgnoresUnchangedSelection(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	res := family.NewResolver(fixedMemberships{list: []model.Membership{
		{ID: 10, FamilyID: "a", Status: model.StatusActive},
	}}, &memSelection{}, slog.Default())
	if err := res.SetIdentity(ctx, 1); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}

	rec := NewReconciler(src, slog.Default())
	defer rec.Close()
	stop := Follow(ctx, res, rec)

	waitFor(t, "subscribe", func() bool { return src.sub("a") != nil })
	if err := res.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	stop()
	if err := res.SetIdentity(ctx, 0); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	src.mu.Lock()
	n := len(src.subs["a"])
	src.mu.Unlock()
	if n != 1 {
		t.Errorf("subscriptions to a = %d, want 1", n)
	}
	if got := rec.View().FamilyID; got != "a" {
		t.Errorf("stopped follower moved the view to %q", got)
	}
}
