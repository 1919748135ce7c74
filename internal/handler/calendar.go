package handler

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/recurrence"
	"github.com/dukerupert/familyos/internal/store"
	ws "github.com/dukerupert/familyos/internal/websocket"
)

const (
	defaultCalendarDays = 7
	maxCalendarRange    = 366 * 24 * time.Hour
)

type CalendarHandler struct {
	eventStore  *store.EventStore
	familyStore *store.FamilyStore
	hub         *ws.Hub
	logger      *slog.Logger
}

func NewCalendarHandler(es *store.EventStore, fs *store.FamilyStore, hub *ws.Hub, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{eventStore: es, familyStore: fs, hub: hub, logger: logger}
}

type eventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	AllDay      bool      `json:"all_day"`
	RRule       string    `json:"rrule"`
	MemberID    *int64    `json:"member_id"`
}

// readEvent decodes and checks an event body. A missing end lasts an hour,
// or the whole day for all-day events. Rules are stored in canonical form.
func (h *CalendarHandler) readEvent(w http.ResponseWriter, r *http.Request, caller *model.Membership) (model.Event, bool) {
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return model.Event{}, false
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return model.Event{}, false
	}
	if req.StartsAt.IsZero() {
		writeError(w, http.StatusBadRequest, "starts_at is required")
		return model.Event{}, false
	}
	if req.EndsAt.IsZero() {
		if req.AllDay {
			req.EndsAt = req.StartsAt.AddDate(0, 0, 1)
		} else {
			req.EndsAt = req.StartsAt.Add(time.Hour)
		}
	}
	if !req.StartsAt.Before(req.EndsAt) {
		writeError(w, http.StatusBadRequest, "starts_at must be before ends_at")
		return model.Event{}, false
	}
	if req.RRule = strings.TrimSpace(req.RRule); req.RRule != "" {
		rule, err := recurrence.Parse(req.RRule)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid rrule: "+err.Error())
			return model.Event{}, false
		}
		req.RRule = rule.String()
	}
	if req.MemberID != nil {
		ok, err := activeMemberOf(h.familyStore, caller.FamilyID, *req.MemberID)
		if err != nil {
			h.logger.Error("get event member", "id", *req.MemberID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check member")
			return model.Event{}, false
		}
		if !ok {
			writeError(w, http.StatusBadRequest, "member is not in this family")
			return model.Event{}, false
		}
	}

	return model.Event{
		FamilyID:    caller.FamilyID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		AllDay:      req.AllDay,
		RRule:       req.RRule,
		MemberID:    req.MemberID,
	}, true
}

// List handles GET /api/families/{family_id}/calendar?from=&to=. It returns
// the occurrences overlapping the range, repeating events expanded, ordered
// by start. The range defaults to a week from the start of today in UTC.
func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	from := recurrence.Day(time.Now().UTC())
	if s := r.URL.Query().Get("from"); s != "" {
		t, err := parseDay(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC3339 or YYYY-MM-DD")
			return
		}
		from = t
	}
	to := from.AddDate(0, 0, defaultCalendarDays)
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := parseDay(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC3339 or YYYY-MM-DD")
			return
		}
		to = t
	}
	if !from.Before(to) || to.Sub(from) > maxCalendarRange {
		writeError(w, http.StatusBadRequest, "to must be after from and at most a year later")
		return
	}

	events, err := h.eventStore.ListBetween(caller.FamilyID, from, to)
	if err != nil {
		h.logger.Error("list events", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	out := []model.Occurrence{}
	for _, e := range events {
		out = append(out, h.occurrences(e, from, to)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].EventID < out[j].EventID
	})
	writeJSON(w, http.StatusOK, out)
}

func (h *CalendarHandler) occurrences(e model.Event, from, to time.Time) []model.Occurrence {
	occ := func(start, end time.Time) model.Occurrence {
		return model.Occurrence{
			EventID:   e.ID,
			Title:     e.Title,
			Location:  e.Location,
			StartsAt:  start,
			EndsAt:    end,
			AllDay:    e.AllDay,
			MemberID:  e.MemberID,
			Recurring: e.RRule != "",
		}
	}
	if e.RRule == "" {
		return []model.Occurrence{occ(e.StartsAt, e.EndsAt)}
	}
	rule, err := recurrence.Parse(e.RRule)
	if err != nil {
		h.logger.Warn("unreadable rrule, showing first occurrence only", "event_id", e.ID, "rrule", e.RRule, "error", err)
		if e.StartsAt.Before(to) && e.EndsAt.After(from) {
			return []model.Occurrence{occ(e.StartsAt, e.EndsAt)}
		}
		return nil
	}
	var out []model.Occurrence
	for _, o := range recurrence.Expand(rule, e.StartsAt, e.EndsAt, from, to) {
		out = append(out, occ(o.Start, o.End))
	}
	return out
}

// Get handles GET /api/families/{family_id}/calendar/{id}
func (h *CalendarHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	e, err := h.eventStore.GetByID(caller.FamilyID, id)
	if err != nil {
		h.logger.Error("get event", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Create handles POST /api/families/{family_id}/calendar
func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	ev, ok := h.readEvent(w, r, caller)
	if !ok {
		return
	}
	ev.CreatedBy = &caller.ID

	e, err := h.eventStore.Create(ev)
	if err != nil {
		h.logger.Error("create event", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityCalendarEvent, ws.ActionInsert, e.ID, e))
	writeJSON(w, http.StatusCreated, e)
}

// Update handles PUT /api/families/{family_id}/calendar/{id}. The body
// replaces every editable field.
func (h *CalendarHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ev, ok := h.readEvent(w, r, caller)
	if !ok {
		return
	}
	ev.ID = id

	e, err := h.eventStore.Update(ev)
	if err != nil {
		h.logger.Error("update event", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityCalendarEvent, ws.ActionUpdate, e.ID, e))
	writeJSON(w, http.StatusOK, e)
}

// Delete handles DELETE /api/families/{family_id}/calendar/{id}
func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	e, err := h.eventStore.GetByID(caller.FamilyID, id)
	if err != nil {
		h.logger.Error("get event", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err := h.eventStore.Delete(caller.FamilyID, id); err != nil {
		h.logger.Error("delete event", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityCalendarEvent, ws.ActionDelete, id, nil))
	w.WriteHeader(http.StatusNoContent)
}
