package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/shopping"
	"github.com/dukerupert/familyos/internal/store"
	ws "github.com/dukerupert/familyos/internal/websocket"
)

type ShoppingHandler struct {
	shoppingStore *store.ShoppingStore
	familyStore   *store.FamilyStore
	hub           *ws.Hub
	logger        *slog.Logger
}

func NewShoppingHandler(ss *store.ShoppingStore, fs *store.FamilyStore, hub *ws.Hub, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{shoppingStore: ss, familyStore: fs, hub: hub, logger: logger}
}

// List handles GET /api/families/{family_id}/shopping
func (h *ShoppingHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	items, err := h.shoppingStore.List(caller.FamilyID)
	if err != nil {
		h.logger.Error("list shopping items", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.ShoppingItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Create handles POST /api/families/{family_id}/shopping. When category is
// omitted it is derived from the item name.
func (h *ShoppingHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	var req struct {
		Name     string `json:"name"`
		Quantity string `json:"quantity"`
		Category string `json:"category"`
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
	if req.Category == "" {
		req.Category = shopping.Categorize(req.Name)
	}

	item, err := h.shoppingStore.Create(caller.FamilyID, req.Name, strings.TrimSpace(req.Quantity), req.Category, &caller.ID)
	if err != nil {
		h.logger.Error("create shopping item", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityShoppingItem, ws.ActionInsert, item.ID, item))
	writeJSON(w, http.StatusCreated, item)
}

// ToggleChecked handles POST /api/families/{family_id}/shopping/{id}/check
func (h *ShoppingHandler) ToggleChecked(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	item, err := h.shoppingStore.ToggleChecked(caller.FamilyID, id, &caller.ID)
	if err != nil {
		h.logger.Error("toggle shopping item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityShoppingItem, ws.ActionUpdate, item.ID, item))
	writeJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /api/families/{family_id}/shopping/{id}
func (h *ShoppingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	item, err := h.shoppingStore.GetByID(caller.FamilyID, id)
	if err != nil {
		h.logger.Error("get shopping item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err := h.shoppingStore.Delete(caller.FamilyID, id); err != nil {
		h.logger.Error("delete shopping item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityShoppingItem, ws.ActionDelete, id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// ClearChecked handles POST /api/families/{family_id}/shopping/clear-checked
func (h *ShoppingHandler) ClearChecked(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	n, err := h.shoppingStore.ClearChecked(caller.FamilyID)
	if err != nil {
		h.logger.Error("clear checked items", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear checked")
		return
	}

	if n > 0 {
		h.hub.Broadcast(ws.NewEvent(caller.FamilyID, ws.EntityShoppingItem, ws.ActionDelete, 0, nil))
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}
