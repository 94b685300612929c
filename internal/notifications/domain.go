package notifications

import (
	"encoding/json"
	"fmt"
	"time"
)

// Notification types. Each type carries its own payload shape.
const (
	TypeTaskAssigned    = "task_assigned"
	TypeTaskStatus      = "task_status"
	TypeChatMessage     = "chat_message"
	TypeAttendanceAlert = "attendance_alert"
)

// TaskAssignedPayload accompanies TypeTaskAssigned.
type TaskAssignedPayload struct {
	TaskID int64  `json:"task_id"`
	Title  string `json:"title"`
}

// TaskStatusPayload accompanies TypeTaskStatus.
type TaskStatusPayload struct {
	TaskID  int64  `json:"task_id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	ActorID int64  `json:"actor_id"`
}

// ChatMessagePayload accompanies TypeChatMessage.
type ChatMessagePayload struct {
	RoomType string `json:"room_type"`
	RoomID   int64  `json:"room_id"`
	SenderID int64  `json:"sender_id"`
	Preview  string `json:"preview"`
}

// AttendanceAlertPayload accompanies TypeAttendanceAlert.
type AttendanceAlertPayload struct {
	RecordID  int64     `json:"record_id"`
	UserID    int64     `json:"user_id"`
	ClockInAt time.Time `json:"clock_in_at"`
	Reason    string    `json:"reason"`
}

// Notification is a durable per-user notification. Payload holds one of
// the *Payload structs above, selected by Type.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Type      string     `json:"type"`
	Payload   any        `json:"payload"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// UnmarshalJSON decodes the payload into the concrete struct for the
// notification's type. Unknown types keep the payload as raw JSON.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	payload, err := decodePayload(n.Type, aux.Payload)
	if err != nil {
		return err
	}
	n.Payload = payload
	return nil
}

func decodePayload(typ string, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var target any
	switch typ {
	case TypeTaskAssigned:
		target = &TaskAssignedPayload{}
	case TypeTaskStatus:
		target = &TaskStatusPayload{}
	case TypeChatMessage:
		target = &ChatMessagePayload{}
	case TypeAttendanceAlert:
		target = &AttendanceAlertPayload{}
	default:
		return raw, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("notifications: decode %s payload: %w", typ, err)
	}
	return target, nil
}
