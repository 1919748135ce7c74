package feed

import (
	"context"
	"sync"

	"github.com/dukerupert/familyos/internal/family"
)

// Selection is the part of the resolver Follow reads.
type Selection interface {
	State() family.State
	Subscribe(fn func(family.State)) func()
}

// Follow points rec at sel's current family and re-points it whenever the
// selection changes, including to "" on sign-out. The returned func stops
// following; it does not close rec.
func Follow(ctx context.Context, sel Selection, rec *Reconciler) func() {
	var (
		mu      sync.Mutex
		watched string
		started bool
		stopped bool
	)
	follow := func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		// Notifications can race each other, so read the latest state
		// instead of trusting the one passed in.
		cur := sel.State().Selection
		if started && cur == watched {
			return
		}
		started = true
		watched = cur
		rec.Watch(ctx, cur)
	}

	unsubscribe := sel.Subscribe(func(family.State) { follow() })
	follow()

	return func() {
		unsubscribe()
		mu.Lock()
		stopped = true
		mu.Unlock()
	}
}
