package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/familyos/internal/auth"
	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/store"
	ws "github.com/dukerupert/familyos/internal/websocket"
)

// MessageNotifier is told about each new message so it can alert the other
// members' devices. It must not block.
type MessageNotifier interface {
	MessageCreated(familyName string, senderUserID int64, msg model.Message)
}

type MessageHandler struct {
	messageStore *store.MessageStore
	familyStore  *store.FamilyStore
	hub          *ws.Hub
	notifier     MessageNotifier
	logger       *slog.Logger
}

// NewMessageHandler creates a MessageHandler. notifier may be nil.
func NewMessageHandler(ms *store.MessageStore, fs *store.FamilyStore, hub *ws.Hub, notifier MessageNotifier, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messageStore: ms, familyStore: fs, hub: hub, notifier: notifier, logger: logger}
}

// List handles GET /api/families/{family_id}/messages?limit=N
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	limit := store.MaxMessageWindow
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, store.MaxMessageWindow)
	}

	list, err := h.messageStore.ListRecent(caller.FamilyID, limit)
	if err != nil {
		h.logger.Error("list messages", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if list == nil {
		list = []model.Message{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/families/{family_id}/messages/{id}
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	msg, err := h.messageStore.GetByID(caller.FamilyID, id)
	if err != nil {
		h.logger.Error("get message", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

type createMessageRequest struct {
	SenderMemberID int64           `json:"sender_member_id"`
	Text           string          `json:"text"`
	MediaURL       string          `json:"media_url"`
	MediaKind      model.MediaKind `json:"media_kind"`
	ReplyToID      *int64          `json:"reply_to_id"`
}

// Create handles POST /api/families/{family_id}/messages
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	var req createMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SenderMemberID != caller.ID {
		writeError(w, http.StatusForbidden, "sender must be your own membership")
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	req.MediaURL = strings.TrimSpace(req.MediaURL)
	if req.Text == "" && req.MediaURL == "" {
		writeError(w, http.StatusBadRequest, "text or media is required")
		return
	}
	if req.MediaURL != "" && !req.MediaKind.Valid() {
		writeError(w, http.StatusBadRequest, "media_kind must be image, video, audio, or file")
		return
	}
	if req.MediaURL == "" {
		req.MediaKind = ""
	}

	if req.ReplyToID != nil {
		target, err := h.messageStore.GetByID(caller.FamilyID, *req.ReplyToID)
		if err != nil {
			h.logger.Error("get reply target", "id", *req.ReplyToID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to send message")
			return
		}
		if target == nil {
			writeError(w, http.StatusBadRequest, "reply_to_id not found")
			return
		}
	}

	msg, err := h.messageStore.Create(store.MessageInput{
		FamilyID:  caller.FamilyID,
		SenderID:  caller.ID,
		Text:      req.Text,
		MediaURL:  req.MediaURL,
		MediaKind: req.MediaKind,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		h.logger.Error("create message", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityMessage, ws.ActionInsert, msg.ID, msg))
	if h.notifier != nil {
		h.notifier.MessageCreated(caller.FamilyName, auth.UserID(r.Context()), *msg)
	}

	writeJSON(w, http.StatusCreated, msg)
}

// Delete handles DELETE /api/families/{family_id}/messages/{id}. The row is
// kept and flagged so replies can still render a placeholder.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	msg, err := h.messageStore.GetByID(caller.FamilyID, id)
	if err != nil {
		h.logger.Error("get message", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if msg.SenderID != caller.ID && !caller.Role.CanManage() {
		writeError(w, http.StatusForbidden, "only the sender or an admin can delete this message")
		return
	}

	msg, err = h.messageStore.SoftDelete(caller.FamilyID, id)
	if err != nil {
		h.logger.Error("delete message", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityMessage, ws.ActionUpdate, msg.ID, msg))
	writeJSON(w, http.StatusOK, msg)
}

// MarkRead handles POST /api/families/{family_id}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	var req struct {
		MessageID int64 `json:"message_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MessageID <= 0 {
		writeError(w, http.StatusBadRequest, "message_id is required")
		return
	}

	if err := h.messageStore.MarkRead(caller.ID, caller.FamilyID, req.MessageID); err != nil {
		h.logger.Error("mark read", "member_id", caller.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unread handles GET /api/families/{family_id}/unread
func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	marker, err := h.messageStore.ReadMarker(caller.ID)
	if err != nil {
		h.logger.Error("get read marker", "member_id", caller.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count unread")
		return
	}
	count, err := h.messageStore.UnreadCount(caller.ID, caller.FamilyID)
	if err != nil {
		h.logger.Error("count unread", "member_id", caller.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count unread")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"last_read_id": marker, "count": int64(count)})
}
