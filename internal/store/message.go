package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/familyos/internal/model"
)

// MaxMessageWindow bounds a single bulk read of a family's chat.
const MaxMessageWindow = 100

type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

const messageSelect = `SELECT msg.id, msg.family_id, msg.sender_member_id, sm.display_name,
	msg.text, msg.media_url, msg.media_kind, msg.reply_to_id, msg.is_deleted, msg.created_at,
	r.id IS NOT NULL, COALESCE(rm.display_name, ''), COALESCE(r.text, ''),
	COALESCE(r.media_kind, ''), COALESCE(r.is_deleted, 0)
	FROM messages msg
	JOIN memberships sm ON sm.id = msg.sender_member_id
	LEFT JOIN messages r ON r.id = msg.reply_to_id
	LEFT JOIN memberships rm ON rm.id = r.sender_member_id`

func scanMessage(scanner interface{ Scan(...any) error }) (*model.Message, error) {
	var m model.Message
	var replyToID sql.NullInt64
	var hasReply bool
	var reply model.ReplySnapshot
	err := scanner.Scan(
		&m.ID, &m.FamilyID, &m.SenderID, &m.SenderName,
		&m.Text, &m.MediaURL, &m.MediaKind, &replyToID, &m.IsDeleted, &m.CreatedAt,
		&hasReply, &reply.SenderName, &reply.Text, &reply.MediaKind, &reply.IsDeleted,
	)
	if err != nil {
		return nil, err
	}
	if replyToID.Valid {
		m.ReplyToID = &replyToID.Int64
	}
	if hasReply {
		if reply.IsDeleted {
			reply.Text = ""
			reply.MediaKind = ""
		}
		m.ReplyTo = &reply
	}
	return &m, nil
}

// MessageInput is the payload of a new chat message.
type MessageInput struct {
	FamilyID  string
	SenderID  int64
	Text      string
	MediaURL  string
	MediaKind model.MediaKind
	ReplyToID *int64
}

func (s *MessageStore) Create(in MessageInput) (*model.Message, error) {
	result, err := s.db.Exec(
		`INSERT INTO messages (family_id, sender_member_id, text, media_url, media_kind, reply_to_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.FamilyID, in.SenderID, in.Text, in.MediaURL, in.MediaKind, in.ReplyToID, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(in.FamilyID, id)
}

// GetByID returns the message including soft-deleted rows.
func (s *MessageStore) GetByID(familyID string, id int64) (*model.Message, error) {
	row := s.db.QueryRow(messageSelect+` WHERE msg.family_id = ? AND msg.id = ?`, familyID, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// ListRecent returns the most recent limit non-deleted messages of the
// family in ascending creation order.
func (s *MessageStore) ListRecent(familyID string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > MaxMessageWindow {
		limit = MaxMessageWindow
	}
	rows, err := s.db.Query(
		messageSelect+` WHERE msg.family_id = ? AND msg.is_deleted = 0
		 ORDER BY msg.created_at DESC, msg.id DESC LIMIT ?`,
		familyID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// SoftDelete flags the message as deleted and returns the updated row.
func (s *MessageStore) SoftDelete(familyID string, id int64) (*model.Message, error) {
	_, err := s.db.Exec(
		`UPDATE messages SET is_deleted = 1 WHERE family_id = ? AND id = ?`,
		familyID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("soft delete message: %w", err)
	}
	return s.GetByID(familyID, id)
}

// MarkRead advances the member's read marker. It never moves backwards.
func (s *MessageStore) MarkRead(memberID int64, familyID string, messageID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO read_markers (member_id, family_id, message_id, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(member_id) DO UPDATE SET
		   message_id = MAX(read_markers.message_id, excluded.message_id),
		   updated_at = excluded.updated_at`,
		memberID, familyID, messageID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// ReadMarker returns the last message id the member has read, or 0.
func (s *MessageStore) ReadMarker(memberID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT message_id FROM read_markers WHERE member_id = ?`, memberID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get read marker: %w", err)
	}
	return id, nil
}

// UnreadCount returns how many non-deleted messages from other members
// are newer than the member's read marker.
func (s *MessageStore) UnreadCount(memberID int64, familyID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM messages
		 WHERE family_id = ? AND is_deleted = 0 AND sender_member_id != ?
		   AND id > COALESCE((SELECT message_id FROM read_markers WHERE member_id = ?), 0)`,
		familyID, memberID, memberID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}
