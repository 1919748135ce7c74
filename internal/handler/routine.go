package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/recurrence"
	"github.com/dukerupert/familyos/internal/store"
	ws "github.com/dukerupert/familyos/internal/websocket"
)

type RoutineHandler struct {
	routineStore *store.RoutineStore
	familyStore  *store.FamilyStore
	hub          *ws.Hub
	logger       *slog.Logger
}

func NewRoutineHandler(rs *store.RoutineStore, fs *store.FamilyStore, hub *ws.Hub, logger *slog.Logger) *RoutineHandler {
	return &RoutineHandler{routineStore: rs, familyStore: fs, hub: hub, logger: logger}
}

// List handles GET /api/families/{family_id}/routines
func (h *RoutineHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	list, err := h.routineStore.List(caller.FamilyID)
	if err != nil {
		h.logger.Error("list routines", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list routines")
		return
	}
	if list == nil {
		list = []model.Routine{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/families/{family_id}/routines. starts_on defaults
// to today in UTC.
func (h *RoutineHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	var req struct {
		Title      string `json:"title"`
		Notes      string `json:"notes"`
		RRule      string `json:"rrule"`
		StartsOn   string `json:"starts_on"`
		AssigneeID *int64 `json:"assignee_member_id"`
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
	startsOn := recurrence.Day(time.Now().UTC())
	if req.StartsOn != "" {
		t, err := parseDay(req.StartsOn)
		if err != nil {
			writeError(w, http.StatusBadRequest, "starts_on must be YYYY-MM-DD")
			return
		}
		startsOn = recurrence.Day(t)
	}
	if req.RRule = strings.TrimSpace(req.RRule); req.RRule != "" {
		rule, err := recurrence.Parse(req.RRule)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid rrule: "+err.Error())
			return
		}
		req.RRule = rule.String()
	}
	if req.AssigneeID != nil {
		ok, err := activeMemberOf(h.familyStore, caller.FamilyID, *req.AssigneeID)
		if err != nil {
			h.logger.Error("get assignee", "id", *req.AssigneeID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create routine")
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, "assignee is not a member of this family")
			return
		}
	}

	rt, err := h.routineStore.Create(model.Routine{
		FamilyID:   caller.FamilyID,
		Title:      req.Title,
		Notes:      strings.TrimSpace(req.Notes),
		RRule:      req.RRule,
		StartsOn:   startsOn,
		AssigneeID: req.AssigneeID,
		CreatedBy:  &caller.ID,
	})
	if err != nil {
		h.logger.Error("create routine", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create routine")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityRoutine, ws.ActionInsert, rt.ID, rt))
	writeJSON(w, http.StatusCreated, rt)
}

// Complete handles POST /api/families/{family_id}/routines/{id}/complete,
// recording the caller as having just done it.
func (h *RoutineHandler) Complete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	rt, err := h.routineStore.MarkDone(caller.FamilyID, id, time.Now(), &caller.ID)
	if err != nil {
		h.logger.Error("mark routine done", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update routine")
		return
	}
	if rt == nil {
		writeError(w, http.StatusNotFound, "routine not found")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityRoutine, ws.ActionUpdate, rt.ID, rt))
	writeJSON(w, http.StatusOK, rt)
}

// Delete handles DELETE /api/families/{family_id}/routines/{id}
func (h *RoutineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	rt, err := h.routineStore.GetByID(caller.FamilyID, id)
	if err != nil {
		h.logger.Error("get routine", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete routine")
		return
	}
	if rt == nil {
		writeError(w, http.StatusNotFound, "routine not found")
		return
	}
	if err := h.routineStore.Delete(caller.FamilyID, id); err != nil {
		h.logger.Error("delete routine", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete routine")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityRoutine, ws.ActionDelete, id, nil))
	w.WriteHeader(http.StatusNoContent)
}
