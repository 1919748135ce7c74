package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/familyos/internal/auth"
	"github.com/dukerupert/familyos/internal/model"
)

// MemberLookup finds a user's active membership in a family.
type MemberLookup interface {
	GetActiveMember(familyID string, userID int64) (*model.Membership, error)
}

// HandleWebSocket upgrades an authenticated request to a live channel for
// the family named by the family_id query parameter. Only active members of
// that family are accepted.
func HandleWebSocket(hub *Hub, members MemberLookup, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		familyID := r.URL.Query().Get("family_id")
		if familyID == "" {
			http.Error(w, "family_id is required", http.StatusBadRequest)
			return
		}

		m, err := members.GetActiveMember(familyID, userID)
		if err != nil {
			logger.Error("websocket member lookup", "family_id", familyID, "user_id", userID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if m == nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // token-authenticated; origin is not a credential here
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("live channel opened", "family_id", familyID, "user_id", userID)
		NewClient(hub, conn, familyID, userID).Run(r.Context())
		logger.Debug("live channel closed", "family_id", familyID, "user_id", userID)
	}
}
