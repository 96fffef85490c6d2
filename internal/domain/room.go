package domain

import "time"

// MessageType distinguishes chat message variants.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// SystemUserID is the author id stamped on server-generated messages.
const SystemUserID = "system"

// FileKind classifies an uploaded file for rendering purposes.
type FileKind string

const (
	FileKindImage FileKind = "image"
	FileKindVideo FileKind = "video"
	FileKindOther FileKind = "file"
)

// FileData describes an uploaded file attached to a message.
type FileData struct {
	Filename     string   `json:"filename"`
	OriginalName string   `json:"originalName"`
	Size         int64    `json:"size"`
	MimeType     string   `json:"mimetype"`
	URL          string   `json:"url"`
	Kind         FileKind `json:"type"`
}

// User is a room participant. A user exists only while it is a member
// of exactly one room.
type User struct {
	ID              string    `json:"id"`
	Nickname        string    `json:"nickname"`
	Avatar          string    `json:"avatar"`
	IsVoiceActive   bool      `json:"isVoiceActive"`
	IsSharingScreen bool      `json:"isSharingScreen"`
	JoinedAt        time.Time `json:"joinedAt"`
}

// Message is a chat message. Author display fields are denormalized at
// send time; later nickname or avatar changes do not rewrite history.
type Message struct {
	ID         string      `json:"id"`
	UserID     string      `json:"userId"`
	Username   string      `json:"username"`
	UserAvatar string      `json:"userAvatar"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Type       MessageType `json:"type"`
	FileData   *FileData   `json:"fileData,omitempty"`
}

// Room is a point-in-time snapshot of a room, safe to marshal and hand
// to clients. Users keep join order; Messages keep append order.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"isPrivate"`
	CreatedAt time.Time `json:"createdAt"`
	Users     []User    `json:"users"`
	Messages  []Message `json:"messages"`
	MaxUsers  int       `json:"maxUsers"`
	CreatorID string    `json:"creatorId"`
}

// RoomSummary is the public view of a room exposed over the HTTP API.
type RoomSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
	UserCount int    `json:"userCount"`
	MaxUsers  int    `json:"maxUsers"`
}

// CreateRoomRequest is the body of POST /api/rooms.
type CreateRoomRequest struct {
	Name            string `json:"name" binding:"required,min=1,max=100"`
	IsPrivate       bool   `json:"isPrivate"`
	MaxUsers        int    `json:"maxUsers" binding:"omitempty,min=2,max=100"`
	CreatorNickname string `json:"creatorNickname" binding:"required,min=1,max=50"`
	CreatorAvatar   string `json:"creatorAvatar" binding:"required"`
}

// CreateRoomResponse is returned from POST /api/rooms.
type CreateRoomResponse struct {
	RoomID string      `json:"roomId"`
	Room   RoomSummary `json:"room"`
}
