package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/crewdeck/crewdeck/internal/attendance"
	"github.com/crewdeck/crewdeck/internal/realtime"
	"github.com/crewdeck/crewdeck/internal/shared"
	"github.com/crewdeck/crewdeck/internal/tasks"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	CreateNotification(ctx context.Context, n Notification) (Notification, error)
	GetNotification(ctx context.Context, id int64) (Notification, error)
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, page, perPage int) ([]Notification, int, error)
	MarkRead(ctx context.Context, userID, id int64, at time.Time) error
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
}

// Broadcaster pushes live events to connected clients. Implemented by
// realtime.Hub.
type Broadcaster interface {
	Relay(group string, payload any, exclude string)
}

// Enqueuer schedules background push delivery. Implemented by the jobs
// client; nil disables enqueueing.
type Enqueuer interface {
	EnqueueNotificationPush(ctx context.Context, notificationID int64) error
}

// RoomMembers resolves chat room membership for fan-out. Implemented by
// chat.Service.
type RoomMembers interface {
	RoomMemberIDs(ctx context.Context, roomType string, roomID int64) ([]int64, error)
}

// Service creates and delivers notifications. Creation failures are
// logged and swallowed so upstream flows are never blocked by the
// notification path.
type Service struct {
	repo     RepositoryPort
	hub      Broadcaster
	enqueuer Enqueuer
	rooms    RoomMembers
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the notifications service. hub, enqueuer and
// rooms may be nil.
func NewService(repo RepositoryPort, hub Broadcaster, enqueuer Enqueuer, rooms RoomMembers, logger *slog.Logger) *Service {
	return &Service{repo: repo, hub: hub, enqueuer: enqueuer, rooms: rooms, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// notify persists one notification, pushes it to the recipient's live
// group and schedules background delivery.
func (s *Service) notify(ctx context.Context, userID int64, typ string, payload any) {
	n, err := s.repo.CreateNotification(ctx, Notification{UserID: userID, Type: typ, Payload: payload})
	if err != nil {
		s.logger.Error("notification create failed", "type", typ, "user_id", userID, "error", err)
		return
	}
	if s.hub != nil {
		s.hub.Relay(realtime.GroupUser(userID), map[string]any{"type": "notification", "notification": n}, "")
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueNotificationPush(ctx, n.ID); err != nil {
			s.logger.Warn("notification enqueue failed", "notification_id", n.ID, "error", err)
		}
	}
}

// TaskAssigned notifies the assignee of a new task.
func (s *Service) TaskAssigned(ctx context.Context, task tasks.Task) error {
	if task.AssigneeID == 0 {
		return nil
	}
	s.notify(ctx, task.AssigneeID, TypeTaskAssigned, TaskAssignedPayload{TaskID: task.ID, Title: task.Title})
	return nil
}

// TaskStatusChanged notifies the assignee of a workflow step taken by
// someone else.
func (s *Service) TaskStatusChanged(ctx context.Context, task tasks.Task, actorID int64) error {
	if task.AssigneeID == 0 || task.AssigneeID == actorID {
		return nil
	}
	s.notify(ctx, task.AssigneeID, TypeTaskStatus, TaskStatusPayload{
		TaskID:  task.ID,
		Title:   task.Title,
		Status:  string(task.Status),
		ActorID: actorID,
	})
	return nil
}

// RecordChatMessage fans a chat message notification out to every room
// member except the sender.
func (s *Service) RecordChatMessage(ctx context.Context, roomType string, roomID, senderID int64, preview string) error {
	if s.rooms == nil {
		return nil
	}
	members, err := s.rooms.RoomMemberIDs(ctx, roomType, roomID)
	if err != nil {
		return err
	}
	payload := ChatMessagePayload{RoomType: roomType, RoomID: roomID, SenderID: senderID, Preview: preview}
	for _, memberID := range members {
		if memberID == senderID {
			continue
		}
		s.notify(ctx, memberID, TypeChatMessage, payload)
	}
	return nil
}

// AttendanceAutoClosed alerts the record owner that their open shift was
// closed automatically.
func (s *Service) AttendanceAutoClosed(ctx context.Context, rec attendance.Record) {
	s.notify(ctx, rec.UserID, TypeAttendanceAlert, AttendanceAlertPayload{
		RecordID:  rec.ID,
		UserID:    rec.UserID,
		ClockInAt: rec.ClockInAt,
		Reason:    "shift auto-closed",
	})
}

// List returns the actor's notifications.
func (s *Service) List(ctx context.Context, actor *shared.Principal, unreadOnly bool, page, perPage int) ([]Notification, shared.Pagination, error) {
	items, total, err := s.repo.ListNotifications(ctx, actor.UserID, unreadOnly, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// MarkRead marks one of the actor's notifications as read.
func (s *Service) MarkRead(ctx context.Context, actor *shared.Principal, id int64) error {
	return s.repo.MarkRead(ctx, actor.UserID, id, s.now())
}

// MarkAllRead marks all of the actor's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context, actor *shared.Principal) (int64, error) {
	return s.repo.MarkAllRead(ctx, actor.UserID, s.now())
}
