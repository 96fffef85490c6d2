package service

import (
	"context"

	"github.com/udalga/alkiscord/internal/domain"
)

// Transport is the connection-level surface the services need from the
// websocket hub. Broadcast and unicast sends are fire-and-forget.
type Transport interface {
	JoinRoom(connID, roomID string)
	LeaveRoom(connID, roomID string)
	BroadcastToRoom(roomID string, message any, excludeConnID string) error
	SendToClient(connID string, message any) error
}

// RoomService routes room-scoped client events: membership, chat, and
// presence toggles. Each connection moves between exactly two states,
// unbound and bound; events arriving in the wrong state are ignored.
type RoomService interface {
	HandleJoin(ctx context.Context, connID string, p domain.JoinPayload) error
	HandleLeave(ctx context.Context, connID string) error
	HandleSendMessage(ctx context.Context, connID string, p domain.SendMessagePayload) error
	HandleToggleVoice(ctx context.Context, connID string, isActive bool) error
	HandleToggleScreenShare(ctx context.Context, connID string, isSharing bool) error
	HandleDisconnect(ctx context.Context, connID string) error
}

// SignalService relays WebRTC negotiation traffic between members
// without interpreting it, and runs the roster protocol that assigns
// offer/answer roles deterministically.
type SignalService interface {
	HandleOffer(ctx context.Context, connID string, p domain.OfferPayload) error
	HandleAnswer(ctx context.Context, connID string, p domain.AnswerPayload) error
	HandleICECandidate(ctx context.Context, connID string, p domain.ICECandidatePayload) error
	HandleVoiceStarted(ctx context.Context, connID string) error
	HandleVoiceStopped(ctx context.Context, connID string) error
	HandleScreenStarted(ctx context.Context, connID string) error
	HandleScreenStopped(ctx context.Context, connID string) error
	HandleReadyForConnections(ctx context.Context, connID, kind string) error
	HandleRequestVoiceUsers(ctx context.Context, connID string) error
	HandleDisconnect(ctx context.Context, connID string) error
}

func envelope(event string, data any) domain.Envelope {
	return domain.Envelope{Event: event, Data: data}
}
