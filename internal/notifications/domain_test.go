package notifications

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotificationDecodesTaskAssignedPayload(t *testing.T) {
	raw := `{"id":1,"user_id":2,"type":"task_assigned","payload":{"task_id":9,"title":"Restock"},"created_at":"2025-06-01T08:00:00Z"}`

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	require.Equal(t, TypeTaskAssigned, n.Type)

	payload, ok := n.Payload.(*TaskAssignedPayload)
	require.True(t, ok)
	require.Equal(t, int64(9), payload.TaskID)
	require.Equal(t, "Restock", payload.Title)
}

func TestNotificationDecodesChatMessagePayload(t *testing.T) {
	raw := `{"id":3,"user_id":2,"type":"chat_message","payload":{"room_type":"direct","room_id":4,"sender_id":7,"preview":"on my way"}}`

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	payload, ok := n.Payload.(*ChatMessagePayload)
	require.True(t, ok)
	require.Equal(t, "direct", payload.RoomType)
	require.Equal(t, int64(7), payload.SenderID)
	require.Equal(t, "on my way", payload.Preview)
}

func TestNotificationDecodesAttendanceAlertPayload(t *testing.T) {
	raw := `{"id":4,"user_id":2,"type":"attendance_alert","payload":{"record_id":11,"user_id":2,"clock_in_at":"2025-06-01T08:00:00Z","reason":"shift auto-closed"}}`

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	payload, ok := n.Payload.(*AttendanceAlertPayload)
	require.True(t, ok)
	require.Equal(t, int64(11), payload.RecordID)
	require.Equal(t, "shift auto-closed", payload.Reason)
	require.Equal(t, 2025, payload.ClockInAt.Year())
}

func TestNotificationKeepsUnknownPayloadRaw(t *testing.T) {
	raw := `{"id":5,"user_id":2,"type":"system_banner","payload":{"text":"maintenance tonight"}}`

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	payload, ok := n.Payload.(json.RawMessage)
	require.True(t, ok)
	require.JSONEq(t, `{"text":"maintenance tonight"}`, string(payload))
}

func TestNotificationMissingPayload(t *testing.T) {
	raw := `{"id":6,"user_id":2,"type":"task_status"}`

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	require.Nil(t, n.Payload)
}

func TestNotificationRoundtrip(t *testing.T) {
	n := Notification{
		ID:     7,
		UserID: 2,
		Type:   TypeTaskStatus,
		Payload: &TaskStatusPayload{
			TaskID: 3, Title: "Sweep", Status: "approved", ActorID: 1,
		},
	}
	data, err := json.Marshal(n)
	require.NoError(t, err)

	var back Notification
	require.NoError(t, json.Unmarshal(data, &back))
	payload, ok := back.Payload.(*TaskStatusPayload)
	require.True(t, ok)
	require.Equal(t, "approved", payload.Status)
	require.Equal(t, int64(1), payload.ActorID)
}
