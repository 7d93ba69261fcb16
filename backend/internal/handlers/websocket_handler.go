package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"

	ws "github.com/user/carteira/backend/internal/websocket"
)

// MarketWSEndpoint streams market feed snapshots to the browser. The
// feed is public display data, so the socket needs no authentication.
func MarketWSEndpoint(c *websocket.Conn) {
	client := &ws.Client{
		Conn: c,
		Send: make(chan []byte, 256),
	}

	ws.GlobalHub.Register <- client

	go clientWritePump(client)

	// Block this handler goroutine on the read side; returning would
	// close the underlying connection.
	clientReadPump(client)
}

// clientWritePump pumps messages from the hub to the websocket connection.
func clientWritePump(client *ws.Client) {
	defer client.Conn.Close()

	for message := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			// Write failed, assume the client disconnected.
			ws.GlobalHub.Unregister <- client
			return
		}
	}
	// Send channel closed by the hub; the deferred Close drops the socket.
}

// clientReadPump drains inbound frames until the client disconnects.
// The market stream is one-way; inbound payloads are ignored.
func clientReadPump(client *ws.Client) {
	defer func() {
		ws.GlobalHub.Unregister <- client
		client.Conn.Close()
	}()

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("remote", client.Conn.RemoteAddr().String()).
					Msg("websocket client disconnected unexpectedly")
			}
			return
		}
	}
}
