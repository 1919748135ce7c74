package model

import "time"

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaFile  MediaKind = "file"
)

func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaVideo, MediaAudio, MediaFile:
		return true
	}
	return false
}

// Message is a family chat message. Deleted messages keep their row with
// IsDeleted set.
type Message struct {
	ID         int64          `json:"id"`
	FamilyID   string         `json:"family_id"`
	SenderID   int64          `json:"sender_member_id"`
	SenderName string         `json:"sender_name"`
	Text       string         `json:"text,omitempty"`
	MediaURL   string         `json:"media_url,omitempty"`
	MediaKind  MediaKind      `json:"media_kind,omitempty"`
	ReplyToID  *int64         `json:"reply_to_id,omitempty"`
	ReplyTo    *ReplySnapshot `json:"reply_to,omitempty"`
	IsDeleted  bool           `json:"is_deleted"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ReplySnapshot carries enough of the replied-to message to render a quote.
type ReplySnapshot struct {
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text,omitempty"`
	MediaKind  MediaKind `json:"media_kind,omitempty"`
	IsDeleted  bool      `json:"is_deleted"`
}
