package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/user/carteira/backend/internal/market"
)

// Client represents a single WebSocket client connection.
type Client struct {
	Conn *websocket.Conn
	Send chan []byte // Buffered channel for outbound messages
}

// Hub fans market snapshots out to connected browsers.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	mu         sync.Mutex
	log        zerolog.Logger
}

var GlobalHub *Hub

// NewHub creates and initializes a new Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		log:        log.With().Str("component", "ws-hub").Logger(),
	}
}

// Run starts the Hub's event loop.
func (h *Hub) Run() {
	h.log.Info().Msg("starting websocket hub")
	go h.listenToMarketUpdates()

	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug().Str("remote", client.Conn.RemoteAddr().String()).Msg("client registered")

			// New clients get the current snapshot right away.
			if assets, _ := market.Snapshot(); len(assets) > 0 {
				if msg, err := json.Marshal(assets); err == nil {
					client.Send <- msg
				}
			}

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug().Str("remote", client.Conn.RemoteAddr().String()).Msg("client unregistered")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Send buffer full, drop the client.
					h.log.Warn().Str("remote", client.Conn.RemoteAddr().String()).
						Msg("client send buffer full, dropping connection")
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// listenToMarketUpdates forwards each feed refresh to every client.
func (h *Hub) listenToMarketUpdates() {
	for assets := range market.Updates {
		msgBytes, err := json.Marshal(assets)
		if err != nil {
			h.log.Error().Err(err).Msg("error marshalling market snapshot")
			continue
		}
		h.broadcast <- msgBytes
	}
}

// InitializeGlobalHub creates and runs the global Hub instance.
func InitializeGlobalHub(log zerolog.Logger) {
	GlobalHub = NewHub(log)
	go GlobalHub.Run()
}
