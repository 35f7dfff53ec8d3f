package websocket

import (
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"

	"choreboard/internal/auth"
	"choreboard/internal/store"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients. The caller must select a team via
// the team_id query parameter and be a member of it; the auth middleware has
// already identified the user.
func HandleWebSocket(hub *Hub, teams *store.TeamStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, err := strconv.ParseInt(r.URL.Query().Get("team_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid team_id", http.StatusBadRequest)
			return
		}

		userID := auth.UserID(r.Context())
		member, err := teams.IsMember(teamID, userID)
		if err != nil {
			logger.Error("websocket membership check", "error", err)
			http.Error(w, "failed to check membership", http.StatusInternalServerError)
			return
		}
		if !member {
			http.Error(w, "access denied", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Cross-origin use is expected; auth is the cookie
		})
		if err != nil {
			logger.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, teamID, userID)
		client.Run(r.Context())
	}
}
