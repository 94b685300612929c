package realtime

import (
	"fmt"
	"strconv"
)

// Well-known broadcast group keys. Membership is in-memory only and does
// not survive a disconnect or a process restart.
const (
	// GroupGlobal receives broadcasts addressed to every live connection.
	GroupGlobal = "global"
	// GroupAdmins receives privileged relays such as employee location pings.
	GroupAdmins = "admins"
)

// GroupUser is the personal group every authenticated connection joins.
func GroupUser(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// GroupTask fans out task activity to its watchers.
func GroupTask(taskID int64) string {
	return "task:" + strconv.FormatInt(taskID, 10)
}

// GroupDepartment fans out to everyone in a department.
func GroupDepartment(deptID int64) string {
	return "dept:" + strconv.FormatInt(deptID, 10)
}

// GroupChat derives the group key for a chat room.
func GroupChat(roomType string, roomID int64) string {
	return fmt.Sprintf("chat:%s:%d", roomType, roomID)
}
