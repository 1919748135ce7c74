package feed

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/familyos/internal/backend"
	"github.com/dukerupert/familyos/internal/model"
)

var ErrEmptyMessage = errors.New("message has no text or media")

// Poster is the write side of the chat backend.
type Poster interface {
	InsertMessage(ctx context.Context, msg backend.NewMessage) error
	UploadMedia(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// Composer sends outbound messages. It never touches a view: a sent
// message shows up once its insert event comes back on the live channel.
type Composer struct {
	dst Poster
}

func NewComposer(dst Poster) *Composer {
	return &Composer{dst: dst}
}

// Send inserts a text message from senderID into familyID.
func (c *Composer) Send(ctx context.Context, familyID string, senderID int64, text string, replyTo *int64) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	err := c.dst.InsertMessage(ctx, backend.NewMessage{
		FamilyID:       familyID,
		SenderMemberID: senderID,
		Text:           text,
		ReplyToID:      replyTo,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendMedia uploads data under the family's prefix and inserts a message
// referencing the returned URL.
func (c *Composer) SendMedia(ctx context.Context, familyID string, senderID int64, filename string, data []byte, replyTo *int64) error {
	if len(data) == 0 {
		return ErrEmptyMessage
	}
	contentType := ContentType(filename, data)
	objectPath := MediaPath(familyID, filename)

	url, err := c.dst.UploadMedia(ctx, objectPath, data, contentType)
	if err != nil {
		return fmt.Errorf("upload media: %w", err)
	}

	err = c.dst.InsertMessage(ctx, backend.NewMessage{
		FamilyID:       familyID,
		SenderMemberID: senderID,
		MediaURL:       url,
		MediaKind:      KindOf(contentType),
		ReplyToID:      replyTo,
	})
	if err != nil {
		return fmt.Errorf("send media message: %w", err)
	}
	return nil
}

// MediaPath returns "<familyID>/<random name><ext>" for an upload.
func MediaPath(familyID, filename string) string {
	return familyID + "/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
}

// ContentType guesses the MIME type from the file extension, falling back
// to sniffing the bytes.
func ContentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// KindOf maps a MIME type onto a message media kind.
func KindOf(contentType string) model.MediaKind {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return model.MediaFile
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return model.MediaImage
	case strings.HasPrefix(mt, "video/"):
		return model.MediaVideo
	case strings.HasPrefix(mt, "audio/"):
		return model.MediaAudio
	}
	return model.MediaFile
}
