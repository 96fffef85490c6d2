// Package session maps live connections to room identities. The binder
// is the only authority for "who is this connection"; the room registry
// remains the authority for "who is in the room".
package session

import "sync"

// Binding associates a connection with the room and user it represents.
type Binding struct {
	RoomID string
	UserID string
}

// Binder holds at most one binding per connection and supports reverse
// lookup by user id for signaling relay targeting.
type Binder struct {
	mu     sync.RWMutex
	byConn map[string]Binding
	byUser map[string]string // userID -> connection ID
}

// NewBinder creates an empty binder.
func NewBinder() *Binder {
	return &Binder{
		byConn: make(map[string]Binding),
		byUser: make(map[string]string),
	}
}

// Bind associates a connection with a (room, user) pair, replacing any
// prior binding for that connection. Rebinding means the previous
// session was abandoned.
func (b *Binder) Bind(connID, roomID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.byConn[connID]; ok {
		delete(b.byUser, prev.UserID)
	}
	b.byConn[connID] = Binding{RoomID: roomID, UserID: userID}
	b.byUser[userID] = connID
}

// Resolve returns the binding for a connection, if any.
func (b *Binder) Resolve(connID string) (Binding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	binding, ok := b.byConn[connID]
	return binding, ok
}

// Unbind clears the binding for a connection. Unknown connections are
// a no-op.
func (b *Binder) Unbind(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.byConn[connID]; ok {
		delete(b.byUser, prev.UserID)
		delete(b.byConn, connID)
	}
}

// ConnByUser returns the connection currently bound to the given user.
func (b *Binder) ConnByUser(userID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	connID, ok := b.byUser[userID]
	return connID, ok
}
