package realtime

import (
	"encoding/json"
	"errors"
	"time"
)

// Event type names carried in the "type" field of every payload.
const (
	EventAuthOK    = "auth:ok"
	EventAuthError = "auth:error"

	EventTaskJoin    = "task:join"
	EventTaskLeave   = "task:leave"
	EventTaskUpdated = "task:updated"

	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"

	EventLocationUpdate = "location:update"
	EventStatusUpdate   = "status:update"

	EventChatJoin    = "chat:join"
	EventChatLeave   = "chat:leave"
	EventChatMessage = "chat:message"
)

// Typing targets.
const (
	TargetTask = "task"
	TargetChat = "chat"
)

// ErrMalformedEvent marks a payload missing required fields. Such events
// are logged and dropped; they never tear down the connection.
var ErrMalformedEvent = errors.New("realtime: malformed event")

type envelope struct {
	Type string `json:"type"`
}

// eventType peeks at the type discriminator of a raw payload.
func eventType(raw []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		return "", ErrMalformedEvent
	}
	return env.Type, nil
}

type authOK struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type authError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type taskEvent struct {
	Type   string `json:"type"`
	TaskID int64  `json:"task_id"`
	Status string `json:"status,omitempty"`

	// Stamped by the server on relay.
	UserID   int64  `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

type typingEvent struct {
	Type     string `json:"type"`
	Target   string `json:"target"`
	TaskID   int64  `json:"task_id,omitempty"`
	RoomType string `json:"room_type,omitempty"`
	RoomID   int64  `json:"room_id,omitempty"`

	UserID   int64  `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

type locationEvent struct {
	Type      string  `json:"type"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`

	UserID   int64     `json:"user_id,omitempty"`
	UserName string    `json:"user_name,omitempty"`
	At       time.Time `json:"at"`
}

type statusEvent struct {
	Type   string `json:"type"`
	Status string `json:"status"`

	UserID   int64  `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

type chatRoomEvent struct {
	Type     string `json:"type"`
	RoomType string `json:"room_type"`
	RoomID   int64  `json:"room_id"`
}

type chatMessageIn struct {
	Type     string `json:"type"`
	RoomType string `json:"room_type"`
	RoomID   int64  `json:"room_id"`
	Body     string `json:"body"`
}

// ChatMessage is the outward message envelope: the server stamps a unique
// id, the cached sender display name, and a server timestamp.
type ChatMessage struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	RoomType   string    `json:"room_type"`
	RoomID     int64     `json:"room_id"`
	SenderID   int64     `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}
