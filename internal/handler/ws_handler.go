package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/udalga/alkiscord/internal/domain"
	"github.com/udalga/alkiscord/internal/hub"
	"github.com/udalga/alkiscord/internal/service"
	pkglog "github.com/udalga/alkiscord/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // nickname-only access model, no origin restriction
	},
}

// WSHandler upgrades connections and routes inbound frames to the room
// and signaling services.
type WSHandler struct {
	hub    *hub.Hub
	rooms  service.RoomService
	signal service.SignalService
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, rooms service.RoomService, signal service.SignalService) *WSHandler {
	return &WSHandler{
		hub:    h,
		rooms:  rooms,
		signal: signal,
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", func(c *gin.Context) {
		h.HandleWebSocket(c.Writer, c.Request)
	})
}

// HandleWebSocket upgrades the connection and starts its pumps.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.L()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &hub.Client{
		ID:   uuid.New().String(),
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	// Signaling cleanup first so remaining peers can release their
	// connection for this user, then the room departure itself.
	client.SetDisconnectHandler(func(connID string) {
		ctx := context.Background()
		if err := h.signal.HandleDisconnect(ctx, connID); err != nil {
			l.Error().Err(err).Str("conn_id", connID).Msg("signal disconnect cleanup failed")
		}
		if err := h.rooms.HandleDisconnect(ctx, connID); err != nil {
			l.Error().Err(err).Str("conn_id", connID).Msg("room disconnect cleanup failed")
		}
	})

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleFrame)
}

// handleFrame decodes one inbound frame and dispatches it. Malformed
// frames and unknown events are absorbed as no-ops; nothing a single
// client sends may take down its connection, let alone the process.
func (h *WSHandler) handleFrame(client *hub.Client, raw []byte) {
	l := pkglog.L()
	ctx := context.Background()

	var frame domain.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		l.Warn().Err(err).Str("conn_id", client.ID).Msg("malformed frame dropped")
		return
	}

	switch frame.Event {
	case domain.EventJoin:
		var p domain.JoinPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			l.Warn().Err(err).Str("conn_id", client.ID).Msg("invalid join payload")
			return
		}
		h.rooms.HandleJoin(ctx, client.ID, p)

	case domain.EventLeave:
		h.rooms.HandleLeave(ctx, client.ID)

	case domain.EventSendMessage:
		var p domain.SendMessagePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			l.Warn().Err(err).Str("conn_id", client.ID).Msg("invalid send-message payload")
			return
		}
		h.rooms.HandleSendMessage(ctx, client.ID, p)

	case domain.EventToggleVoice:
		var p domain.ToggleVoicePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		h.rooms.HandleToggleVoice(ctx, client.ID, p.IsActive)

	case domain.EventToggleScreenShare:
		var p domain.ToggleScreenSharePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		h.rooms.HandleToggleScreenShare(ctx, client.ID, p.IsSharing)

	case domain.EventOffer:
		var p domain.OfferPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		h.signal.HandleOffer(ctx, client.ID, p)

	case domain.EventAnswer:
		var p domain.AnswerPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		h.signal.HandleAnswer(ctx, client.ID, p)

	case domain.EventICECandidate:
		var p domain.ICECandidatePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		h.signal.HandleICECandidate(ctx, client.ID, p)

	case domain.EventVoiceStarted:
		h.signal.HandleVoiceStarted(ctx, client.ID)

	case domain.EventVoiceStopped:
		h.signal.HandleVoiceStopped(ctx, client.ID)

	case domain.EventScreenStarted:
		h.signal.HandleScreenStarted(ctx, client.ID)

	case domain.EventScreenStopped:
		h.signal.HandleScreenStopped(ctx, client.ID)

	case domain.EventReadyForConnections:
		var p domain.ReadyForConnectionsPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		h.signal.HandleReadyForConnections(ctx, client.ID, p.Type)

	case domain.EventRequestVoiceUsers:
		h.signal.HandleRequestVoiceUsers(ctx, client.ID)

	default:
		l.Warn().Str("conn_id", client.ID).Str("event", frame.Event).Msg("unknown event dropped")
	}
}
