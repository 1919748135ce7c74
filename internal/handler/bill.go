package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/familyos/internal/bills"
	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/recurrence"
	"github.com/dukerupert/familyos/internal/store"
	ws "github.com/dukerupert/familyos/internal/websocket"
)

type BillHandler struct {
	billStore   *store.BillStore
	familyStore *store.FamilyStore
	hub         *ws.Hub
	logger      *slog.Logger
}

func NewBillHandler(bs *store.BillStore, fs *store.FamilyStore, hub *ws.Hub, logger *slog.Logger) *BillHandler {
	return &BillHandler{billStore: bs, familyStore: fs, hub: hub, logger: logger}
}

// requireAdult is requireMember for changes children may not make.
func (h *BillHandler) requireAdult(w http.ResponseWriter, r *http.Request) (*model.Membership, bool) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return nil, false
	}
	if caller.Role == model.RoleChild {
		writeError(w, http.StatusForbidden, "children cannot change bills")
		return nil, false
	}
	return caller, true
}

// List handles GET /api/families/{family_id}/bills
func (h *BillHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	list, err := h.billStore.List(caller.FamilyID)
	if err != nil {
		h.logger.Error("list bills", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list bills")
		return
	}
	if list == nil {
		list = []model.Bill{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/families/{family_id}/bills
func (h *BillHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAdult(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		AmountCents int64  `json:"amount_cents"`
		FirstDue    string `json:"first_due"`
		RRule       string `json:"rrule"`
		AutoPay     bool   `json:"autopay"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.AmountCents < 0 {
		writeError(w, http.StatusBadRequest, "amount_cents cannot be negative")
		return
	}
	due, err := parseDay(req.FirstDue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "first_due must be YYYY-MM-DD")
		return
	}
	if req.RRule = strings.TrimSpace(req.RRule); req.RRule != "" {
		rule, err := recurrence.Parse(req.RRule)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid rrule: "+err.Error())
			return
		}
		req.RRule = rule.String()
	}

	b, err := h.billStore.Create(model.Bill{
		FamilyID:    caller.FamilyID,
		Name:        req.Name,
		AmountCents: req.AmountCents,
		FirstDue:    recurrence.Day(due),
		RRule:       req.RRule,
		AutoPay:     req.AutoPay,
		CreatedBy:   &caller.ID,
	})
	if err != nil {
		h.logger.Error("create bill", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create bill")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityBill, ws.ActionInsert, b.ID, b))
	writeJSON(w, http.StatusCreated, b)
}

// Pay handles POST /api/families/{family_id}/bills/{id}/pay. It settles the
// next unpaid due date only, so a bill behind by several periods takes one
// call per period.
func (h *BillHandler) Pay(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAdult(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	b, err := h.billStore.GetByID(caller.FamilyID, id)
	if err != nil {
		h.logger.Error("get bill", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to pay bill")
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "bill not found")
		return
	}
	due, ok := bills.NextUnpaid(*b)
	if !ok {
		writeError(w, http.StatusConflict, "bill is already paid")
		return
	}

	b, err = h.billStore.MarkPaid(caller.FamilyID, id, due, &caller.ID)
	if err != nil {
		h.logger.Error("mark bill paid", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to pay bill")
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "bill not found")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityBill, ws.ActionUpdate, b.ID, b))
	writeJSON(w, http.StatusOK, b)
}

// Delete handles DELETE /api/families/{family_id}/bills/{id}
func (h *BillHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAdult(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	b, err := h.billStore.GetByID(caller.FamilyID, id)
	if err != nil {
		h.logger.Error("get bill", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete bill")
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "bill not found")
		return
	}
	if err := h.billStore.Delete(caller.FamilyID, id); err != nil {
		h.logger.Error("delete bill", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete bill")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityBill, ws.ActionDelete, id, nil))
	w.WriteHeader(http.StatusNoContent)
}
