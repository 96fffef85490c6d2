// Package hub owns websocket connection fanout: per-client write pumps
// and per-room broadcast. It carries no identity or room-domain state;
// that lives in the session binder and the room registry.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udalga/alkiscord/internal/config"
	pkglog "github.com/udalga/alkiscord/pkg/log"
)

// DisconnectHandler is called once when a client's read pump exits.
type DisconnectHandler func(connID string)

// Client represents one connected websocket.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	disconnectHandler DisconnectHandler
}

// SetDisconnectHandler sets the handler invoked on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// roomMessage is a pre-encoded message queued for room fanout.
type roomMessage struct {
	roomID  string
	payload []byte
	exclude string // connection ID to skip
}

// Hub manages all websocket connections and their room groupings. All
// room broadcasts pass through one loop, so every member of a room
// observes fanout in the same order.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client // roomID -> connID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomMessage
	mu         sync.RWMutex
	cfg        config.WebSocketConfig
}

// New creates a hub.
func New(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomMessage, 256),
		cfg:        cfg,
	}
}

// Run drives the hub loop until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	l := pkglog.L()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Debug().Str("conn_id", client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for roomID, members := range h.rooms {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.rooms, roomID)
					}
				}
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			l.Debug().Str("conn_id", client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID, client := range h.rooms[msg.roomID] {
				if connID == msg.exclude {
					continue
				}
				select {
				case client.Send <- msg.payload:
				default:
					// Slow consumer; drop the connection rather
					// than stall the room.
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub and all rooms.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinRoom adds a connection to a room's fanout group.
func (h *Hub) JoinRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][connID] = client
}

// LeaveRoom removes a connection from a room's fanout group.
func (h *Hub) LeaveRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// BroadcastToRoom queues a message for every member of a room, except
// the excluded connection if any. Fire-and-forget: delivery to any one
// member never blocks on another.
func (h *Hub) BroadcastToRoom(roomID string, message any, excludeConnID string) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.broadcast <- &roomMessage{roomID: roomID, payload: payload, exclude: excludeConnID}
	return nil
}

// SendToClient sends a message to a single connection. An unknown
// connection is a silent drop.
func (h *Hub) SendToClient(connID string, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	// Held across the send so the hub loop cannot close the channel
	// between the lookup and the select.
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return nil
	}

	select {
	case client.Send <- payload:
	default:
		go h.Unregister(client)
	}
	return nil
}

// ReadPump pumps inbound frames to the handler until the connection
// drops, then runs disconnect cleanup exactly once.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		if c.disconnectHandler != nil {
			c.disconnectHandler(c.ID)
		}
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := pkglog.L()
				l.Error().Err(err).Str("conn_id", c.ID).Msg("websocket error")
			}
			break
		}
		handler(c, message)
	}
}

// WritePump drains the send channel to the websocket and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.cfg.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
