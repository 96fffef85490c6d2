package domain

import "encoding/json"

// Events sent by clients.
const (
	EventJoin              = "room:join"
	EventLeave             = "room:leave"
	EventSendMessage       = "room:send-message"
	EventToggleVoice       = "room:toggle-voice"
	EventToggleScreenShare = "room:toggle-screen-share"

	EventOffer               = "webrtc:offer"
	EventAnswer              = "webrtc:answer"
	EventICECandidate        = "webrtc:ice-candidate"
	EventVoiceStarted        = "webrtc:voice-started"
	EventVoiceStopped        = "webrtc:voice-stopped"
	EventScreenStarted       = "webrtc:screen-started"
	EventScreenStopped       = "webrtc:screen-stopped"
	EventReadyForConnections = "webrtc:ready-for-connections"
	EventRequestVoiceUsers   = "webrtc:request-voice-users"
)

// Events sent to clients.
const (
	EventRoomJoined        = "room:joined"
	EventUserJoined        = "room:user-joined"
	EventUserLeft          = "room:user-left"
	EventRoomMessage       = "room:message"
	EventVoiceToggle       = "room:voice-toggle"
	EventScreenShareToggle = "room:screen-share-toggle"
	EventRoomError         = "room:error"

	EventPeerJoined        = "webrtc:user-joined"
	EventPeerLeft          = "webrtc:user-left"
	EventPeerReady         = "webrtc:user-ready"
	EventVoiceUsersList    = "webrtc:voice-users-list"
	EventPeerVoiceStarted  = "webrtc:user-voice-started"
	EventPeerVoiceStopped  = "webrtc:user-voice-stopped"
	EventPeerScreenStarted = "webrtc:user-screen-started"
	EventPeerScreenStopped = "webrtc:user-screen-stopped"
)

// Frame is an inbound websocket message, decoded in two steps: first the
// event name, then the event-specific payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Envelope is an outbound websocket message.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client -> server payloads.

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

type LeavePayload struct {
	RoomID string `json:"roomId"`
}

type SendMessagePayload struct {
	RoomID   string    `json:"roomId"`
	Content  string    `json:"content"`
	FileData *FileData `json:"fileData,omitempty"`
}

type ToggleVoicePayload struct {
	RoomID   string `json:"roomId"`
	IsActive bool   `json:"isActive"`
}

type ToggleScreenSharePayload struct {
	RoomID    string `json:"roomId"`
	IsSharing bool   `json:"isSharing"`
}

// Signaling payloads are opaque; the server relays them without
// inspecting the SDP or candidate body.

type OfferPayload struct {
	TargetUserID string          `json:"targetUserId"`
	Offer        json.RawMessage `json:"offer"`
}

type AnswerPayload struct {
	TargetUserID string          `json:"targetUserId"`
	Answer       json.RawMessage `json:"answer"`
}

type ICECandidatePayload struct {
	TargetUserID string          `json:"targetUserId"`
	Candidate    json.RawMessage `json:"candidate"`
}

type PresencePayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type ReadyForConnectionsPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Type   string `json:"type"` // "voice" or "screen"
}

type RequestVoiceUsersPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// Server -> client payloads.

type RoomJoinedEvent struct {
	Room Room `json:"room"`
	User User `json:"user"`
}

type UserLeftEvent struct {
	UserID string `json:"userId"`
}

type VoiceToggleEvent struct {
	UserID   string `json:"userId"`
	IsActive bool   `json:"isActive"`
}

type ScreenShareToggleEvent struct {
	UserID    string `json:"userId"`
	IsSharing bool   `json:"isSharing"`
}

type RoomErrorEvent struct {
	Message string `json:"message"`
}

type OfferEvent struct {
	FromUserID string          `json:"fromUserId"`
	Offer      json.RawMessage `json:"offer"`
}

type AnswerEvent struct {
	FromUserID string          `json:"fromUserId"`
	Answer     json.RawMessage `json:"answer"`
}

type ICECandidateEvent struct {
	FromUserID string          `json:"fromUserId"`
	Candidate  json.RawMessage `json:"candidate"`
}

type PeerEvent struct {
	UserID string `json:"userId"`
}

type PeerReadyEvent struct {
	UserID string `json:"userId"`
	Type   string `json:"type"`
}

type VoiceUsersListEvent struct {
	VoiceUsers []string `json:"voiceUsers"`
}
