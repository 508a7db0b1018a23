package realtime

import (
	"net/http"

	"github.com/ruslan-synytsia/chat-ws-api/pkg/log"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades HTTP → WS and starts the connection's read/write loops.
// dispatch receives every inbound event; onClose fires once when the
// connection drops, whatever the cause.
func Handler(bufferSize int, dispatch Dispatch, onClose func(Client)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Logger.Warn().Err(err).Msg("ws upgrade failed")
			return
		}

		conn := NewConn(ws, bufferSize, dispatch, onClose) // goroutines start inside NewConn
		connectionsOpened.Inc()
		log.Logger.Info().Str("conn_id", conn.ID()).Str("remote", r.RemoteAddr).Msg("ws connected")
	}
}
