package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udalga/alkiscord/internal/domain"
	"github.com/udalga/alkiscord/internal/registry"
	"github.com/udalga/alkiscord/internal/session"
)

// sentEvent records one transport call in arrival order.
type sentEvent struct {
	op      string // "send", "broadcast", "joinRoom", "leaveRoom"
	connID  string // send target, room membership conn, or broadcast exclusion
	roomID  string
	env     domain.Envelope
}

// fakeTransport stands in for the websocket hub and records every call.
type fakeTransport struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeTransport) JoinRoom(connID, roomID string) {
	f.record(sentEvent{op: "joinRoom", connID: connID, roomID: roomID})
}

func (f *fakeTransport) LeaveRoom(connID, roomID string) {
	f.record(sentEvent{op: "leaveRoom", connID: connID, roomID: roomID})
}

func (f *fakeTransport) BroadcastToRoom(roomID string, message any, excludeConnID string) error {
	f.record(sentEvent{op: "broadcast", connID: excludeConnID, roomID: roomID, env: message.(domain.Envelope)})
	return nil
}

func (f *fakeTransport) SendToClient(connID string, message any) error {
	f.record(sentEvent{op: "send", connID: connID, env: message.(domain.Envelope)})
	return nil
}

func (f *fakeTransport) record(e sentEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

// all returns a copy of the recorded calls.
func (f *fakeTransport) all() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentEvent, len(f.events))
	copy(out, f.events)
	return out
}

// sentTo returns the envelopes unicast to one connection.
func (f *fakeTransport) sentTo(connID string) []domain.Envelope {
	var out []domain.Envelope
	for _, e := range f.all() {
		if e.op == "send" && e.connID == connID {
			out = append(out, e.env)
		}
	}
	return out
}

// broadcasts returns the broadcast calls for one room.
func (f *fakeTransport) broadcasts(roomID string) []sentEvent {
	var out []sentEvent
	for _, e := range f.all() {
		if e.op == "broadcast" && e.roomID == roomID {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

// fixture wires the services against a fake transport and one room.
type fixture struct {
	reg    *registry.Registry
	binder *session.Binder
	tr     *fakeTransport
	rooms  RoomService
	signal SignalService
	roomID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	locks := NewRoomLocks()
	reg := registry.New(registry.Config{
		RoomTTL:         time.Hour,
		EmptyRoomTTL:    time.Hour,
		DefaultMaxUsers: 50,
		OnRoomDeleted:   locks.Forget,
	})
	binder := session.NewBinder()
	tr := &fakeTransport{}

	roomID, err := reg.CreateRoom("Test Room", false, 10, "creator", "🦊")
	require.NoError(t, err)

	return &fixture{
		reg:    reg,
		binder: binder,
		tr:     tr,
		rooms:  NewRoomService(tr, reg, binder, locks),
		signal: NewSignalService(tr, reg, binder, locks),
		roomID: roomID,
	}
}

// join admits a connection into the fixture room and returns the user id.
func (f *fixture) join(t *testing.T, connID, nickname string) string {
	t.Helper()
	err := f.rooms.HandleJoin(context.Background(), connID, domain.JoinPayload{
		RoomID:   f.roomID,
		Nickname: nickname,
		Avatar:   "🐱",
	})
	require.NoError(t, err)
	b, ok := f.binder.Resolve(connID)
	require.True(t, ok)
	return b.UserID
}
