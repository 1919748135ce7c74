package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/familyos/internal/auth"
	"github.com/dukerupert/familyos/internal/model"
	"github.com/dukerupert/familyos/internal/store"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON")
	}
	return nil
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// requireMember resolves the caller's active membership in the family named
// by the family_id path value. It writes the error response itself and
// reports false when the request should stop.
func requireMember(families *store.FamilyStore, logger *slog.Logger, w http.ResponseWriter, r *http.Request) (*model.Membership, bool) {
	familyID := r.PathValue("family_id")
	if familyID == "" {
		writeError(w, http.StatusBadRequest, "family_id is required")
		return nil, false
	}
	m, err := families.GetActiveMember(familyID, auth.UserID(r.Context()))
	if err != nil {
		logger.Error("member lookup", "family_id", familyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return nil, false
	}
	if m == nil {
		writeError(w, http.StatusForbidden, "not a member of this family")
		return nil, false
	}
	return m, true
}

// activeMemberOf reports whether membership id is active in familyID.
func activeMemberOf(families *store.FamilyStore, familyID string, id int64) (bool, error) {
	m, err := families.GetMembership(id)
	if err != nil {
		return false, err
	}
	return m != nil && m.FamilyID == familyID && m.Status == model.StatusActive, nil
}

// parseDay reads an RFC 3339 time or a YYYY-MM-DD date.
func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
