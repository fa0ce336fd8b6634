package websocket

import (
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"
)

// HandleActivityFeed upgrades a GP dashboard connection and runs it as a hub
// client scoped to the org in the path. Authorization happened in the guard;
// membership is the caller's responsibility via the authorize callback.
func HandleActivityFeed(hub *Hub, authorize func(r *http.Request, orgID int64) bool, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, err := strconv.ParseInt(r.PathValue("org_id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid organization", http.StatusBadRequest)
			return
		}
		if authorize != nil && !authorize(r, orgID) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, orgID)
		client.Run(r.Context())
	}
}
