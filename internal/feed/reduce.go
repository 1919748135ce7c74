// Package feed keeps the live chat view of the active family: a bounded
// bootstrap read merged with insert and update events from the family's
// live channel.
package feed

import (
	"github.com/dukerupert/familyos/internal/backend"
	"github.com/dukerupert/familyos/internal/model"
)

// Apply returns seq after ev. Inserts of a known id are ignored. Updates only
// matter when they soft-delete, in which case the id is removed. The input
// slice is never modified.
func Apply(seq []model.Message, ev backend.Event) []model.Message {
	switch ev.Kind {
	case backend.EventInsert:
		if ev.Message.IsDeleted || indexOf(seq, ev.Message.ID) >= 0 {
			return seq
		}
		out := make([]model.Message, len(seq), len(seq)+1)
		copy(out, seq)
		return append(out, ev.Message)
	case backend.EventUpdate:
		if !ev.Message.IsDeleted {
			return seq
		}
		i := indexOf(seq, ev.Message.ID)
		if i < 0 {
			return seq
		}
		out := make([]model.Message, 0, len(seq)-1)
		out = append(out, seq[:i]...)
		return append(out, seq[i+1:]...)
	}
	return seq
}

// Bootstrap turns a bulk read into a view, dropping deleted rows and repeated
// ids while keeping the read's order.
func Bootstrap(msgs []model.Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	seen := make(map[int64]struct{}, len(msgs))
	for _, m := range msgs {
		if m.IsDeleted {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func indexOf(seq []model.Message, id int64) int {
	for i := range seq {
		if seq[i].ID == id {
			return i
		}
	}
	return -1
}

func lastID(seq []model.Message) int64 {
	if len(seq) == 0 {
		return 0
	}
	return seq[len(seq)-1].ID
}
