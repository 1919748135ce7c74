package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/familyos/internal/auth"
	"github.com/dukerupert/familyos/internal/email"
	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/store"
	ws "github.com/dukerupert/familyos/internal/websocket"
)

type FamilyHandler struct {
	familyStore *store.FamilyStore
	userStore   *store.UserStore
	emailClient *email.Client
	hub         *ws.Hub
	logger      *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, us *store.UserStore, ec *email.Client, hub *ws.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{familyStore: fs, userStore: us, emailClient: ec, hub: hub, logger: logger}
}

// displayName returns name, or the caller's account name when name is blank.
func (h *FamilyHandler) displayName(r *http.Request, name string) (string, error) {
	if name = strings.TrimSpace(name); name != "" {
		return name, nil
	}
	u, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil || u == nil {
		return "", err
	}
	return u.Name, nil
}

// Create handles POST /api/families
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
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

	display, err := h.displayName(r, req.DisplayName)
	if err != nil {
		h.logger.Error("load user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create family")
		return
	}

	family, owner, err := h.familyStore.CreateWithOwner(req.Name, auth.UserID(r.Context()), display)
	if err != nil {
		h.logger.Error("create family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create family")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"family": family, "membership": owner})
}

// Rename handles PATCH /api/families/{family_id}
func (h *FamilyHandler) Rename(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	if !caller.Role.CanManage() {
		writeError(w, http.StatusForbidden, "only owners and admins can rename the family")
		return
	}

	var req struct {
		Name string `json:"name"`
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

	family, err := h.familyStore.Rename(caller.FamilyID, req.Name)
	if err != nil {
		h.logger.Error("rename family", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to rename family")
		return
	}
	if family == nil {
		writeError(w, http.StatusNotFound, "family not found")
		return
	}

	h.hub.Broadcast(ws.NewEvent(family.ID, ws.EntityFamily, ws.ActionUpdate, 0, family))
	writeJSON(w, http.StatusOK, family)
}

// Memberships handles GET /api/memberships
func (h *FamilyHandler) Memberships(w http.ResponseWriter, r *http.Request) {
	list, err := h.familyStore.ActiveMemberships(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list memberships", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list memberships")
		return
	}
	if list == nil {
		list = []model.Membership{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Invitations handles GET /api/invitations
func (h *FamilyHandler) Invitations(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	list, err := h.familyStore.Invitations(ac.UserID, ac.Email)
	if err != nil {
		h.logger.Error("list invitations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list invitations")
		return
	}
	if list == nil {
		list = []model.Membership{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Invite handles POST /api/families/{family_id}/invitations
func (h *FamilyHandler) Invite(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	if !caller.Role.CanManage() {
		writeError(w, http.StatusForbidden, "only owners and admins can invite")
		return
	}

	var req struct {
		Email string     `json:"email"`
		Role  model.Role `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleAdult
	}
	if !req.Role.Valid() || req.Role == model.RoleOwner {
		writeError(w, http.StatusBadRequest, "role must be admin, adult, or child")
		return
	}

	inv, err := h.familyStore.Invite(caller.FamilyID, req.Email, req.Role, auth.UserID(r.Context()))
	if errors.Is(err, store.ErrAlreadyMember) {
		writeError(w, http.StatusConflict, "already a member or invited")
		return
	}
	if err != nil {
		h.logger.Error("invite member", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to invite member")
		return
	}

	if h.emailClient != nil && h.emailClient.Configured() {
		if err := h.emailClient.SendInvitation(r.Context(), inv.Email, caller.FamilyName, caller.DisplayName, string(inv.Role)); err != nil {
			h.logger.Warn("send invitation email", "family_id", caller.FamilyID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, inv)
}

// Accept handles POST /api/invitations/{id}/accept
func (h *FamilyHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		DisplayName string `json:"display_name"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	display, err := h.displayName(r, req.DisplayName)
	if err != nil {
		h.logger.Error("load user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept invitation")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	m, err := h.familyStore.Accept(id, ac.UserID, ac.Email, display)
	if errors.Is(err, store.ErrNotInvited) {
		writeError(w, http.StatusNotFound, "invitation not found")
		return
	}
	if err != nil {
		h.logger.Error("accept invitation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept invitation")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// Decline handles POST /api/invitations/{id}/decline
func (h *FamilyHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	err = h.familyStore.Decline(id, ac.UserID, ac.Email)
	if errors.Is(err, store.ErrNotInvited) {
		writeError(w, http.StatusNotFound, "invitation not found")
		return
	}
	if err != nil {
		h.logger.Error("decline invitation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to decline invitation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Members handles GET /api/families/{family_id}/members
func (h *FamilyHandler) Members(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}

	list, err := h.familyStore.ListMembers(caller.FamilyID)
	if err != nil {
		h.logger.Error("list members", "family_id", caller.FamilyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if list == nil {
		list = []model.Membership{}
	}
	writeJSON(w, http.StatusOK, list)
}

// RemoveMember handles DELETE /api/families/{family_id}/members/{member_id}.
// Owners and admins may remove anyone but the owner; anyone else may only
// remove themselves.
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireMember(h.familyStore, h.logger, w, r)
	if !ok {
		return
	}
	memberID, err := parseIDParam(r, "member_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member_id")
		return
	}

	target, err := h.familyStore.GetMembership(memberID)
	if err != nil {
		h.logger.Error("get membership", "id", memberID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	if target == nil || target.FamilyID != caller.FamilyID {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	if target.Role == model.RoleOwner {
		writeError(w, http.StatusForbidden, "the owner cannot be removed")
		return
	}
	if !caller.Role.CanManage() && target.ID != caller.ID {
		writeError(w, http.StatusForbidden, "only owners and admins can remove members")
		return
	}

	removed, err := h.familyStore.RemoveMember(caller.FamilyID, memberID)
	if err != nil {
		h.logger.Error("remove member", "id", memberID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	if target.UserID != nil {
		if n := h.hub.Disconnect(caller.FamilyID, *target.UserID); n > 0 {
			h.logger.Debug("closed live channels of removed member", "family_id", caller.FamilyID, "count", n)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
