package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/udalga/alkiscord/internal/domain"
	pkglog "github.com/udalga/alkiscord/pkg/log"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrNicknameTaken   = errors.New("nickname already taken in this room")
	ErrNameRequired    = errors.New("room name is required")
	ErrCreatorRequired = errors.New("room creator is required")
)

// PresenceField selects one of the two independent presence flags.
type PresenceField int

const (
	PresenceVoice PresenceField = iota
	PresenceScreen
)

// Config holds room lifecycle settings.
type Config struct {
	// RoomTTL is how long a room lives after creation, regardless of
	// activity.
	RoomTTL time.Duration
	// EmptyRoomTTL is how long an empty room lives before collection.
	EmptyRoomTTL time.Duration
	// DefaultMaxUsers applies when a create request omits a capacity.
	DefaultMaxUsers int
	// OnRoomDeleted, if set, is called after a room has been garbage
	// collected. It runs outside the registry lock.
	OnRoomDeleted func(roomID string)
}

// room is the live, mutable record. It is only ever touched under the
// registry mutex; callers receive value snapshots.
type room struct {
	id        string
	name      string
	isPrivate bool
	createdAt time.Time
	maxUsers  int
	creatorID string
	users     []*domain.User
	messages  []domain.Message
}

func (r *room) snapshot() domain.Room {
	users := make([]domain.User, len(r.users))
	for i, u := range r.users {
		users[i] = *u
	}
	messages := make([]domain.Message, len(r.messages))
	copy(messages, r.messages)
	return domain.Room{
		ID:        r.id,
		Name:      r.name,
		IsPrivate: r.isPrivate,
		CreatedAt: r.createdAt,
		Users:     users,
		Messages:  messages,
		MaxUsers:  r.maxUsers,
		CreatorID: r.creatorID,
	}
}

func (r *room) userByID(userID string) *domain.User {
	for _, u := range r.users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

// Registry owns the room table. All mutations on a room happen as one
// atomic step under the registry mutex; nothing else in the process may
// mutate room state.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room
	cfg   Config
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	return &Registry{
		rooms: make(map[string]*room),
		cfg:   cfg,
	}
}

// JoinResult carries everything a caller needs to announce a join: the
// admitted user, a room snapshot that includes the new user, and the
// system message recording the join. The snapshot is taken before the
// system message is appended, so the joiner receives that message as a
// live broadcast rather than as history.
type JoinResult struct {
	Room          domain.Room
	User          domain.User
	SystemMessage domain.Message
}

// LeaveResult carries the removed user, the departure system message,
// and whether the room is now empty.
type LeaveResult struct {
	User          domain.User
	SystemMessage domain.Message
	Empty         bool
}

// CreateRoom allocates a fresh room and schedules its unconditional
// expiry. It returns the room id.
func (reg *Registry) CreateRoom(name string, isPrivate bool, maxUsers int, creatorNickname, creatorAvatar string) (string, error) {
	if name == "" {
		return "", ErrNameRequired
	}
	if creatorNickname == "" || creatorAvatar == "" {
		return "", ErrCreatorRequired
	}
	if maxUsers <= 0 {
		maxUsers = reg.cfg.DefaultMaxUsers
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	id := newRoomCode()
	for {
		if _, taken := reg.rooms[id]; !taken {
			break
		}
		id = newRoomCode()
	}

	reg.rooms[id] = &room{
		id:        id,
		name:      name,
		isPrivate: isPrivate,
		createdAt: time.Now(),
		maxUsers:  maxUsers,
		creatorID: newToken(),
	}

	time.AfterFunc(reg.cfg.RoomTTL, func() { reg.expire(id) })

	l := pkglog.L()
	l.Info().Str("room_id", id).Str("name", name).Int("max_users", maxUsers).Msg("room created")
	return id, nil
}

// Room returns a snapshot of the room, or false if it does not exist.
func (reg *Registry) Room(roomID string) (domain.Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return domain.Room{}, false
	}
	return r.snapshot(), true
}

// Summary returns the public view of a room.
func (reg *Registry) Summary(roomID string) (domain.RoomSummary, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return domain.RoomSummary{}, false
	}
	return domain.RoomSummary{
		ID:        r.id,
		Name:      r.name,
		IsPrivate: r.isPrivate,
		UserCount: len(r.users),
		MaxUsers:  r.maxUsers,
	}, true
}

// Join admits a user into a room. Existence, capacity, and nickname
// uniqueness are checked and the membership insert performed as a
// single atomic step, so two racing joins can never both pass a
// capacity check that only has room for one of them.
func (reg *Registry) Join(roomID, nickname, avatar string) (JoinResult, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return JoinResult{}, ErrRoomNotFound
	}
	if len(r.users) >= r.maxUsers {
		return JoinResult{}, ErrRoomFull
	}
	for _, u := range r.users {
		if u.Nickname == nickname {
			return JoinResult{}, ErrNicknameTaken
		}
	}

	user := &domain.User{
		ID:       newToken(),
		Nickname: nickname,
		Avatar:   avatar,
		JoinedAt: time.Now(),
	}
	r.users = append(r.users, user)

	res := JoinResult{
		Room: r.snapshot(),
		User: *user,
	}

	res.SystemMessage = newSystemMessage(nickname + " joined the room")
	r.messages = append(r.messages, res.SystemMessage)

	return res, nil
}

// Leave removes a user from a room and appends the departure system
// message. When the room becomes empty the empty-room expiry is armed;
// the condition is re-checked when the timer fires, so a room that
// refills in the meantime survives.
func (reg *Registry) Leave(roomID, userID string) (LeaveResult, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return LeaveResult{}, false
	}

	idx := -1
	for i, u := range r.users {
		if u.ID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return LeaveResult{}, false
	}

	user := *r.users[idx]
	r.users = append(r.users[:idx], r.users[idx+1:]...)

	res := LeaveResult{
		User:          user,
		SystemMessage: newSystemMessage(user.Nickname + " left the room"),
		Empty:         len(r.users) == 0,
	}
	r.messages = append(r.messages, res.SystemMessage)

	if res.Empty {
		time.AfterFunc(reg.cfg.EmptyRoomTTL, func() { reg.expireIfEmpty(roomID) })
	}

	return res, true
}

// AppendMessage appends an already-built message. A vanished room is a
// silent drop, not an error: by the time delivery is attempted in that
// race the audience is gone anyway.
func (reg *Registry) AppendMessage(roomID string, msg domain.Message) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return false
	}
	r.messages = append(r.messages, msg)
	return true
}

// AppendUserMessage builds a message authored by the given member,
// stamping the author's current nickname and avatar, and appends it.
// Returns false if the room or the member is gone.
func (reg *Registry) AppendUserMessage(roomID, userID, content string, fileData *domain.FileData) (domain.Message, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return domain.Message{}, false
	}
	u := r.userByID(userID)
	if u == nil {
		return domain.Message{}, false
	}

	msgType := domain.MessageTypeText
	if fileData != nil {
		msgType = domain.MessageTypeFile
	}
	msg := domain.Message{
		ID:         newToken(),
		UserID:     u.ID,
		Username:   u.Nickname,
		UserAvatar: u.Avatar,
		Content:    content,
		Timestamp:  time.Now(),
		Type:       msgType,
		FileData:   fileData,
	}
	r.messages = append(r.messages, msg)
	return msg, true
}

// SetPresence updates one presence flag and returns the updated user.
// A missing room or user is a no-op.
func (reg *Registry) SetPresence(roomID, userID string, field PresenceField, value bool) (domain.User, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return domain.User{}, false
	}
	u := r.userByID(userID)
	if u == nil {
		return domain.User{}, false
	}

	switch field {
	case PresenceVoice:
		u.IsVoiceActive = value
	case PresenceScreen:
		u.IsSharingScreen = value
	}
	return *u, true
}

// UserByID returns a snapshot of a single member.
func (reg *Registry) UserByID(roomID, userID string) (domain.User, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return domain.User{}, false
	}
	u := r.userByID(userID)
	if u == nil {
		return domain.User{}, false
	}
	return *u, true
}

// VoiceUsers returns the ids of voice-active members, excluding the
// requester. The second return is false if the room does not exist.
func (reg *Registry) VoiceUsers(roomID, excludeUserID string) ([]string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(r.users))
	for _, u := range r.users {
		if u.IsVoiceActive && u.ID != excludeUserID {
			ids = append(ids, u.ID)
		}
	}
	return ids, true
}

// expire removes a room that reached its creation TTL. Only existence
// is re-checked; the creation expiry is unconditional.
func (reg *Registry) expire(roomID string) {
	reg.mu.Lock()
	_, ok := reg.rooms[roomID]
	if ok {
		delete(reg.rooms, roomID)
	}
	reg.mu.Unlock()

	if !ok {
		return
	}
	l := pkglog.L()
	l.Info().Str("room_id", roomID).Msg("room expired")
	if reg.cfg.OnRoomDeleted != nil {
		reg.cfg.OnRoomDeleted(roomID)
	}
}

// expireIfEmpty removes a room only if it is still empty at fire time.
// A stale timer on a refilled room is a safe no-op.
func (reg *Registry) expireIfEmpty(roomID string) {
	reg.mu.Lock()
	r, ok := reg.rooms[roomID]
	empty := ok && len(r.users) == 0
	if empty {
		delete(reg.rooms, roomID)
	}
	reg.mu.Unlock()

	if !empty {
		return
	}
	l := pkglog.L()
	l.Info().Str("room_id", roomID).Msg("empty room collected")
	if reg.cfg.OnRoomDeleted != nil {
		reg.cfg.OnRoomDeleted(roomID)
	}
}

func newSystemMessage(content string) domain.Message {
	return domain.Message{
		ID:         newToken(),
		UserID:     domain.SystemUserID,
		Username:   "System",
		UserAvatar: "🤖",
		Content:    content,
		Timestamp:  time.Now(),
		Type:       domain.MessageTypeSystem,
	}
}
