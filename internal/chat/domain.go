package chat

import "time"

// RoomType enumerates the chat room kinds.
type RoomType string

const (
	// RoomDirect is a two-person conversation.
	RoomDirect RoomType = "direct"
	// RoomGroup is an ad-hoc multi-member conversation.
	RoomGroup RoomType = "group"
	// RoomTask is the conversation attached to a task.
	RoomTask RoomType = "task"
)

// Valid reports whether the room type is one of the known kinds.
func (t RoomType) Valid() bool {
	switch t {
	case RoomDirect, RoomGroup, RoomTask:
		return true
	}
	return false
}

// Room is a chat conversation.
type Room struct {
	ID        int64     `json:"id"`
	Type      RoomType  `json:"type"`
	Name      string    `json:"name,omitempty"`
	TaskID    int64     `json:"task_id,omitempty"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a persisted chat message. MessageID is the server-stamped
// unique id of the relayed envelope.
type Message struct {
	ID         int64     `json:"id"`
	MessageID  string    `json:"message_id"`
	RoomID     int64     `json:"room_id"`
	SenderID   int64     `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}
