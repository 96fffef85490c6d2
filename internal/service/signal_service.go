package service

import (
	"context"

	"github.com/udalga/alkiscord/internal/domain"
	"github.com/udalga/alkiscord/internal/registry"
	"github.com/udalga/alkiscord/internal/session"
	pkglog "github.com/udalga/alkiscord/pkg/log"
)

// signalService forwards negotiation traffic between members by target
// user id. Payloads stay opaque end to end.
//
// Role assignment is directional, not timestamp-based: a member that
// announces readiness is always the answerer toward the existing mesh,
// and a member that discovers the mesh through the roster query is the
// initiator toward everyone it discovers. Both sides can never decide
// to offer at the same time, which is what keeps glare out.
type signalService struct {
	transport Transport
	registry  *registry.Registry
	binder    *session.Binder
	locks     *RoomLocks
}

// NewSignalService creates the signaling relay.
func NewSignalService(t Transport, reg *registry.Registry, b *session.Binder, locks *RoomLocks) SignalService {
	return &signalService{
		transport: t,
		registry:  reg,
		binder:    b,
		locks:     locks,
	}
}

func (s *signalService) HandleOffer(ctx context.Context, connID string, p domain.OfferPayload) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}
	s.relay(ctx, b.UserID, p.TargetUserID, envelope(domain.EventOffer, domain.OfferEvent{FromUserID: b.UserID, Offer: p.Offer}))
	return nil
}

func (s *signalService) HandleAnswer(ctx context.Context, connID string, p domain.AnswerPayload) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}
	s.relay(ctx, b.UserID, p.TargetUserID, envelope(domain.EventAnswer, domain.AnswerEvent{FromUserID: b.UserID, Answer: p.Answer}))
	return nil
}

func (s *signalService) HandleICECandidate(ctx context.Context, connID string, p domain.ICECandidatePayload) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}
	s.relay(ctx, b.UserID, p.TargetUserID, envelope(domain.EventICECandidate, domain.ICECandidateEvent{FromUserID: b.UserID, Candidate: p.Candidate}))
	return nil
}

// HandleVoiceStarted marks the sender voice-active and tells the rest
// of the room. Every already voice-active member that receives the
// notification initiates an offer toward the newcomer; the newcomer
// never offers back.
func (s *signalService) HandleVoiceStarted(ctx context.Context, connID string) error {
	return s.setVoice(connID, true, domain.EventPeerVoiceStarted)
}

func (s *signalService) HandleVoiceStopped(ctx context.Context, connID string) error {
	return s.setVoice(connID, false, domain.EventPeerVoiceStopped)
}

func (s *signalService) HandleScreenStarted(ctx context.Context, connID string) error {
	return s.notifyOthers(connID, domain.EventPeerScreenStarted)
}

func (s *signalService) HandleScreenStopped(ctx context.Context, connID string) error {
	return s.notifyOthers(connID, domain.EventPeerScreenStopped)
}

// HandleReadyForConnections announces that the sender can receive
// inbound offers of the given kind. The recipients initiate; the
// announcer only answers.
func (s *signalService) HandleReadyForConnections(ctx context.Context, connID, kind string) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}
	s.transport.BroadcastToRoom(b.RoomID, envelope(domain.EventPeerReady, domain.PeerReadyEvent{UserID: b.UserID, Type: kind}), connID)
	return nil
}

// HandleRequestVoiceUsers returns the current voice mesh to the sender,
// which then initiates an offer toward each listed member.
func (s *signalService) HandleRequestVoiceUsers(ctx context.Context, connID string) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}
	voiceUsers, ok := s.registry.VoiceUsers(b.RoomID, b.UserID)
	if !ok {
		return nil
	}
	s.transport.SendToClient(connID, envelope(domain.EventVoiceUsersList, domain.VoiceUsersListEvent{VoiceUsers: voiceUsers}))
	return nil
}

// HandleDisconnect tells the remaining members to release their peer
// connection for the departed user. The actual teardown is client-side
// work against the real peer-connection objects.
func (s *signalService) HandleDisconnect(ctx context.Context, connID string) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}
	s.transport.BroadcastToRoom(b.RoomID, envelope(domain.EventPeerLeft, domain.PeerEvent{UserID: b.UserID}), connID)
	return nil
}

// relay sends to the one connection bound to the target user. An
// unreachable target is a silent drop; the sender's own connection
// timeout is the failure signal.
func (s *signalService) relay(ctx context.Context, fromUserID, targetUserID string, msg domain.Envelope) {
	targetConn, ok := s.binder.ConnByUser(targetUserID)
	if !ok {
		l := pkglog.Ctx(ctx)
		l.Debug().Str("from_user", fromUserID).Str("target_user", targetUserID).Str("event", msg.Event).Msg("signal target unreachable, dropped")
		return
	}
	s.transport.SendToClient(targetConn, msg)
}

func (s *signalService) setVoice(connID string, active bool, event string) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}

	mu := s.locks.Get(b.RoomID)
	mu.Lock()
	defer mu.Unlock()

	s.registry.SetPresence(b.RoomID, b.UserID, registry.PresenceVoice, active)
	s.transport.BroadcastToRoom(b.RoomID, envelope(event, domain.PeerEvent{UserID: b.UserID}), connID)
	return nil
}

func (s *signalService) notifyOthers(connID, event string) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}
	s.transport.BroadcastToRoom(b.RoomID, envelope(event, domain.PeerEvent{UserID: b.UserID}), connID)
	return nil
}
