// Package backend describes the external collaborator the client core talks
// to: membership queries, the chat message table, its live change channel,
// and object storage for media.
package backend

import (
	"context"

	"github.com/dukerupert/familyos/internal/model"
)

// EventKind is the kind of change delivered on a family's live channel.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
)

// Event is one change to a chat message, carrying the full record.
type Event struct {
	Kind    EventKind
	Message model.Message
}

// Subscription is a live channel scoped to one family. Events is closed when
// the channel ends, after which Err reports why (nil after Close).
type Subscription interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// NewMessage is the payload of an insert into the chat message table.
type NewMessage struct {
	FamilyID       string          `json:"-"`
	SenderMemberID int64           `json:"sender_member_id"`
	Text           string          `json:"text,omitempty"`
	MediaURL       string          `json:"media_url,omitempty"`
	MediaKind      model.MediaKind `json:"media_kind,omitempty"`
	ReplyToID      *int64          `json:"reply_to_id,omitempty"`
}

// Memberships answers which families a user belongs to.
type Memberships interface {
	// ActiveMemberships returns the user's active memberships, each with the
	// family's display name, in a stable order. Invitations are excluded.
	ActiveMemberships(ctx context.Context, userID int64) ([]model.Membership, error)
}

// Messages is the chat message table and its live change feed.
type Messages interface {
	// Messages returns up to limit non-deleted messages, the most recent
	// ones, ascending by creation time.
	Messages(ctx context.Context, familyID string, limit int) ([]model.Message, error)
	InsertMessage(ctx context.Context, msg NewMessage) error
	Subscribe(ctx context.Context, familyID string) (Subscription, error)
	MarkRead(ctx context.Context, familyID string, messageID int64) error
}

// Media stores uploaded bytes and returns their public URL. The path is
// "<family id>/<object name>".
type Media interface {
	UploadMedia(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// Backend is everything the client core needs from the remote side.
type Backend interface {
	Memberships
	Messages
	Media
}
