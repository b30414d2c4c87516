package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket. Origin is checked by the
// default same-host rule since the session rides on a cookie.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// CountsHub fans count updates out to websocket viewers.
type CountsHub interface {
	Register(conn *websocket.Conn) bool
	Unregister(conn *websocket.Conn)
}

// CountsWebsocketHandler handles viewer connections over WebSocket: the
// current counts are sent at once, later changes arrive through the hub.
func CountsWebsocketHandler(hub CountsHub, live LiveService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		initial, err := json.Marshal(dto.NewCountsResponse(live.Counts()))
		if err == nil {
			connection.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err = connection.WriteMessage(websocket.TextMessage, initial)
		}
		if err != nil || !hub.Register(connection) {
			connection.Close()
			return
		}
		defer hub.Unregister(connection)

		logger.Info("Counts viewer %s connected", sessionEmail(r))

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Counts viewer disconnected normally")
				} else {
					logger.Warning("Counts viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
