package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/familyos/internal/backend"
	"github.com/dukerupert/familyos/internal/model"
)

// BootstrapLimit is the size of the initial window read on (re)selection.
const BootstrapLimit = 100

var errChannelClosed = errors.New("live channel closed")

// Source is the part of the backend the reconciler reads from.
type Source interface {
	Messages(ctx context.Context, familyID string, limit int) ([]model.Message, error)
	Subscribe(ctx context.Context, familyID string) (backend.Subscription, error)
	MarkRead(ctx context.Context, familyID string, messageID int64) error
}

// View is what the chat screen renders.
type View struct {
	FamilyID string
	Messages []model.Message
	Loading  bool
	Err      error
}

type Option func(*Reconciler)

// WithOnChange registers fn to receive every new view. It is called from the
// reconciler's goroutines and must not block for long.
func WithOnChange(fn func(View)) Option {
	return func(r *Reconciler) { r.onChange = fn }
}

// WithBackoff sets the delay bounds used when the live channel drops.
func WithBackoff(initial, limit time.Duration) Option {
	return func(r *Reconciler) {
		r.minBackoff = initial
		r.maxBackoff = limit
	}
}

// Reconciler maintains the message view for one family at a time. Each
// session subscribes to the family's live channel before issuing the bulk
// read, so events delivered during bootstrap queue on the subscription and
// are de-duplicated when applied.
type Reconciler struct {
	src        Source
	logger     *slog.Logger
	onChange   func(View)
	minBackoff time.Duration
	maxBackoff time.Duration

	mu         sync.Mutex
	view       View
	epoch      uint64
	version    uint64
	lastMarked int64
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	emitMu      sync.Mutex
	lastEmitted uint64
}

func NewReconciler(src Source, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		src:        src,
		logger:     logger,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Watch discards the current view and starts a session for familyID. An
// empty familyID only tears the current session down. Results still in
// flight for a previous family are dropped when they arrive.
func (r *Reconciler) Watch(ctx context.Context, familyID string) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.epoch++
	epoch := r.epoch
	r.lastMarked = 0
	r.view = View{FamilyID: familyID, Loading: familyID != ""}
	r.version++
	v, ver := r.view, r.version

	var sctx context.Context
	if familyID != "" {
		var cancel context.CancelFunc
		sctx, cancel = context.WithCancel(ctx)
		r.cancel = cancel
		r.wg.Add(1)
	}
	r.mu.Unlock()

	r.emit(v, ver)
	if sctx != nil {
		go r.run(sctx, epoch, familyID)
	}
}

// View returns the current view.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Close tears down the active session and waits for its goroutine.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.epoch++
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Reconciler) run(ctx context.Context, epoch uint64, familyID string) {
	defer r.wg.Done()

	backoff := r.minBackoff
	for {
		bootstrapped, err := r.runOnce(ctx, epoch, familyID)
		if ctx.Err() != nil {
			return
		}
		if bootstrapped {
			backoff = r.minBackoff
		}

		r.logger.Warn("live feed interrupted", "family_id", familyID, "error", err, "retry_in", backoff)
		r.update(epoch, func(v *View) { v.Err = err })

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
}

// runOnce subscribes, bootstraps and applies events until the channel ends.
func (r *Reconciler) runOnce(ctx context.Context, epoch uint64, familyID string) (bool, error) {
	r.update(epoch, func(v *View) { v.Loading = true })

	sub, err := r.src.Subscribe(ctx, familyID)
	if err != nil {
		r.update(epoch, func(v *View) { v.Loading = false })
		return false, fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	msgs, err := r.src.Messages(ctx, familyID, BootstrapLimit)
	if err != nil {
		r.update(epoch, func(v *View) { v.Loading = false })
		return false, fmt.Errorf("bootstrap: %w", err)
	}
	mark, ok := r.update(epoch, func(v *View) {
		v.Messages = Bootstrap(msgs)
		v.Loading = false
		v.Err = nil
	})
	if !ok {
		return false, ctx.Err()
	}
	r.markRead(ctx, epoch, familyID, mark)

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case ev, open := <-events:
			if !open {
				if err := sub.Err(); err != nil {
					return true, err
				}
				return true, errChannelClosed
			}
			mark, ok := r.update(epoch, func(v *View) { v.Messages = Apply(v.Messages, ev) })
			if !ok {
				return true, ctx.Err()
			}
			if ev.Kind == backend.EventInsert {
				r.markRead(ctx, epoch, familyID, mark)
			}
		}
	}
}

// update mutates the view if epoch is still current and emits it. It returns
// the id to mark as read, or 0 when the tail did not move, and false when the
// session was superseded.
func (r *Reconciler) update(epoch uint64, fn func(v *View)) (int64, bool) {
	r.mu.Lock()
	if epoch != r.epoch {
		r.mu.Unlock()
		return 0, false
	}
	fn(&r.view)
	r.version++
	v, ver := r.view, r.version

	var mark int64
	if last := lastID(v.Messages); last != 0 && last != r.lastMarked {
		mark = last
	}
	r.mu.Unlock()

	r.emit(v, ver)
	return mark, true
}

// markRead issues the read receipt unless the session was superseded.
// Failures are logged and dropped.
func (r *Reconciler) markRead(ctx context.Context, epoch uint64, familyID string, id int64) {
	if id == 0 {
		return
	}
	r.mu.Lock()
	if epoch != r.epoch || id == r.lastMarked {
		r.mu.Unlock()
		return
	}
	r.lastMarked = id
	r.mu.Unlock()

	if err := r.src.MarkRead(ctx, familyID, id); err != nil {
		r.logger.Debug("mark read", "family_id", familyID, "message_id", id, "error", err)
	}
}

func (r *Reconciler) emit(v View, version uint64) {
	if r.onChange == nil {
		return
	}
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if version <= r.lastEmitted {
		return
	}
	r.lastEmitted = version
	r.onChange(v)
}
