package service

import (
	"context"
	"errors"
	"sync"

	"github.com/udalga/alkiscord/internal/domain"
	"github.com/udalga/alkiscord/internal/registry"
	"github.com/udalga/alkiscord/internal/session"
	pkglog "github.com/udalga/alkiscord/pkg/log"
)

// RoomLocks serializes the mutate-then-broadcast unit per room, so the
// order members observe room events matches the order the registry
// applied the mutations. Cross-room traffic proceeds in parallel.
type RoomLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRoomLocks creates an empty lock table.
func NewRoomLocks() *RoomLocks {
	return &RoomLocks{locks: make(map[string]*sync.Mutex)}
}

// Get returns the dispatch lock for a room, creating it on first use.
func (l *RoomLocks) Get(roomID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[roomID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[roomID] = m
	}
	return m
}

// Forget drops the lock entry for a deleted room. Holders of the old
// lock only ever operate on a room that no longer exists, which every
// registry operation treats as a no-op.
func (l *RoomLocks) Forget(roomID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, roomID)
}

type roomService struct {
	transport Transport
	registry  *registry.Registry
	binder    *session.Binder
	locks     *RoomLocks
}

// NewRoomService creates the room event router.
func NewRoomService(t Transport, reg *registry.Registry, b *session.Binder, locks *RoomLocks) RoomService {
	return &roomService{
		transport: t,
		registry:  reg,
		binder:    b,
		locks:     locks,
	}
}

func (s *roomService) HandleJoin(ctx context.Context, connID string, p domain.JoinPayload) error {
	l := pkglog.Ctx(ctx)

	prev, wasBound := s.binder.Resolve(connID)
	// Rejoining the current room releases the old membership up front
	// so the nickname can be reclaimed.
	if wasBound && prev.RoomID == p.RoomID {
		s.leave(connID, prev)
		wasBound = false
	}

	mu := s.locks.Get(p.RoomID)
	mu.Lock()

	res, err := s.registry.Join(p.RoomID, p.Nickname, p.Avatar)
	if err != nil {
		mu.Unlock()
		// A rejected join leaves any current session untouched.
		s.transport.SendToClient(connID, envelope(domain.EventRoomError, domain.RoomErrorEvent{Message: joinErrorMessage(err)}))
		l.Warn().Err(err).Str("conn_id", connID).Str("room_id", p.RoomID).Msg("join rejected")
		return err
	}

	s.binder.Bind(connID, p.RoomID, res.User.ID)
	s.transport.JoinRoom(connID, p.RoomID)

	// Snapshot to the joiner first, then announce to the rest. The
	// join system message goes to the whole room, joiner included.
	s.transport.SendToClient(connID, envelope(domain.EventRoomJoined, domain.RoomJoinedEvent{Room: res.Room, User: res.User}))
	s.transport.BroadcastToRoom(p.RoomID, envelope(domain.EventUserJoined, res.User), connID)
	s.transport.BroadcastToRoom(p.RoomID, envelope(domain.EventPeerJoined, domain.PeerEvent{UserID: res.User.ID}), connID)
	s.transport.BroadcastToRoom(p.RoomID, envelope(domain.EventRoomMessage, res.SystemMessage), "")
	mu.Unlock()

	// Only a successful admission abandons the previous session. The
	// old room is left after the new one is joined, so room locks are
	// never held nested.
	if wasBound {
		s.departRoom(connID, prev)
	}

	l.Info().Str("conn_id", connID).Str("room_id", p.RoomID).Str("user_id", res.User.ID).Str("nickname", res.User.Nickname).Msg("user joined room")
	return nil
}

func (s *roomService) HandleLeave(ctx context.Context, connID string) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}
	s.leave(connID, b)
	l := pkglog.Ctx(ctx)
	l.Info().Str("conn_id", connID).Str("room_id", b.RoomID).Str("user_id", b.UserID).Msg("user left room")
	return nil
}

func (s *roomService) HandleSendMessage(ctx context.Context, connID string, p domain.SendMessagePayload) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}

	mu := s.locks.Get(b.RoomID)
	mu.Lock()
	defer mu.Unlock()

	msg, ok := s.registry.AppendUserMessage(b.RoomID, b.UserID, p.Content, p.FileData)
	if !ok {
		// Room expired mid-session; nothing left to deliver to.
		return nil
	}

	// The sender receives the broadcast too: clients render from this
	// authoritative echo instead of a local optimistic copy.
	s.transport.BroadcastToRoom(b.RoomID, envelope(domain.EventRoomMessage, msg), "")
	return nil
}

func (s *roomService) HandleToggleVoice(ctx context.Context, connID string, isActive bool) error {
	return s.togglePresence(connID, registry.PresenceVoice, isActive)
}

func (s *roomService) HandleToggleScreenShare(ctx context.Context, connID string, isSharing bool) error {
	return s.togglePresence(connID, registry.PresenceScreen, isSharing)
}

func (s *roomService) HandleDisconnect(ctx context.Context, connID string) error {
	return s.HandleLeave(ctx, connID)
}

func (s *roomService) togglePresence(connID string, field registry.PresenceField, value bool) error {
	b, ok := s.binder.Resolve(connID)
	if !ok {
		return nil
	}

	mu := s.locks.Get(b.RoomID)
	mu.Lock()
	defer mu.Unlock()

	user, ok := s.registry.SetPresence(b.RoomID, b.UserID, field, value)
	if !ok {
		return nil
	}

	// The sender already knows its own new state; notify the others.
	switch field {
	case registry.PresenceVoice:
		s.transport.BroadcastToRoom(b.RoomID, envelope(domain.EventVoiceToggle, domain.VoiceToggleEvent{UserID: user.ID, IsActive: value}), connID)
	case registry.PresenceScreen:
		s.transport.BroadcastToRoom(b.RoomID, envelope(domain.EventScreenShareToggle, domain.ScreenShareToggleEvent{UserID: user.ID, IsSharing: value}), connID)
	}
	return nil
}

// departRoom removes the given membership from its room, announces the
// departure to the remaining members, and detaches the connection from
// the room's fanout group. The departer itself receives nothing, and
// the connection's binding is left alone.
func (s *roomService) departRoom(connID string, b session.Binding) {
	mu := s.locks.Get(b.RoomID)
	mu.Lock()
	if res, ok := s.registry.Leave(b.RoomID, b.UserID); ok {
		s.transport.BroadcastToRoom(b.RoomID, envelope(domain.EventUserLeft, domain.UserLeftEvent{UserID: b.UserID}), connID)
		s.transport.BroadcastToRoom(b.RoomID, envelope(domain.EventRoomMessage, res.SystemMessage), connID)
	}
	mu.Unlock()

	s.transport.LeaveRoom(connID, b.RoomID)
}

// leave ends the session entirely: room departure plus unbinding.
func (s *roomService) leave(connID string, b session.Binding) {
	s.departRoom(connID, b)
	s.binder.Unbind(connID)
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, registry.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, registry.ErrRoomFull):
		return "Room is full"
	case errors.Is(err, registry.ErrNicknameTaken):
		return "Nickname already taken in this room"
	default:
		return "Failed to join room"
	}
}
