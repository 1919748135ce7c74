package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/store"
	ws "github.com/dukerupert/familyos/internal/websocket"
)

type TaskHandler struct {
	taskStore   *store.TaskStore
	familyStore *store.FamilyStore
	hub         *ws.Hub
	logger      *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, fs *store.FamilyStore, hub *ws.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{taskStore: ts, familyStore: fs, hub: hub, logger: logger}
}

// List handles GET /api/families/{family_id}/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	list, err := h.taskStore.List(caller.FamilyID)
	if err != nil {
		h.logger.Error("list tasks", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if list == nil {
		list = []model.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/families/{family_id}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	var req struct {
		Title      string     `json:"title"`
		Notes      string     `json:"notes"`
		AssigneeID *int64     `json:"assignee_member_id"`
		DueAt      *time.Time `json:"due_at"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	if req.AssigneeID != nil {
		ok, err := activeMemberOf(h.familyStore, caller.FamilyID, *req.AssigneeID)
		if err != nil {
			h.logger.Error("get assignee", "id", *req.AssigneeID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create task")
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, "assignee is not a member of this family")
			return
		}
	}

	t, err := h.taskStore.Create(caller.FamilyID, req.Title, strings.TrimSpace(req.Notes), req.AssigneeID, req.DueAt, &caller.ID)
	if err != nil {
		h.logger.Error("create task", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityTask, ws.ActionInsert, t.ID, t))
	writeJSON(w, http.StatusCreated, t)
}

// Complete handles POST /api/families/{family_id}/tasks/{id}/complete. It
// toggles, so calling it on a done task reopens it.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	t, err := h.taskStore.ToggleDone(caller.FamilyID, id, &caller.ID)
	if err != nil {
		h.logger.Error("toggle task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityTask, ws.ActionUpdate, t.ID, t))
	writeJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/families/{family_id}/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	t, err := h.taskStore.GetByID(caller.FamilyID, id)
	if err != nil {
		h.logger.Error("get task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err := h.taskStore.Delete(caller.FamilyID, id); err != nil {
		h.logger.Error("delete task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityTask, ws.ActionDelete, id, nil))
	w.WriteHeader(http.StatusNoContent)
}
