package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/crewdeck/crewdeck/internal/jobs"
	"github.com/crewdeck/crewdeck/internal/notifications"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotificationPush delivers a stored notification to external
	// push channels.
	TaskNotificationPush = "notification:push"
	// TaskAttendanceAutoClose closes shifts left open past the maximum.
	TaskAttendanceAutoClose = "attendance:auto_close"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// NotificationPushPayload identifies the notification to deliver.
type NotificationPushPayload struct {
	NotificationID int64 `json:"notification_id"`
}

// NewNotificationPushTask constructs an Asynq task for push delivery.
func NewNotificationPushTask(notificationID int64) (*asynq.Task, error) {
	body, err := json.Marshal(NotificationPushPayload{NotificationID: notificationID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationPush, body, asynq.Queue(QueueDefault)), nil
}

// NewAttendanceAutoCloseTask constructs the cron task closing stale shifts.
func NewAttendanceAutoCloseTask() *asynq.Task {
	return asynq.NewTask(TaskAttendanceAutoClose, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyCleanupTask constructs the cron task pruning old keys.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}

// NotificationLoader fetches stored notifications for delivery.
type NotificationLoader interface {
	GetNotification(ctx context.Context, id int64) (notifications.Notification, error)
}

// Pusher delivers a notification to an external channel. LogPusher is
// the default until a provider integration lands.
type Pusher interface {
	Push(ctx context.Context, n notifications.Notification) error
}

// LogPusher logs deliveries instead of calling a provider.
type LogPusher struct {
	Logger *slog.Logger
}

// Push implements Pusher.
func (p LogPusher) Push(ctx context.Context, n notifications.Notification) error {
	p.Logger.Info("push delivered", "notification_id", n.ID, "user_id", n.UserID, "type", n.Type)
	return nil
}

// NewNotificationPushHandler builds the TaskNotificationPush handler.
func NewNotificationPushHandler(loader NotificationLoader, pusher Pusher, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		track := metrics.Track("notification_push")
		var payload NotificationPushPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = track.End(err)
			return asynq.SkipRetry
		}
		n, err := loader.GetNotification(ctx, payload.NotificationID)
		if err != nil {
			logger.Warn("push load failed", "notification_id", payload.NotificationID, "error", err)
			return track.End(err)
		}
		return track.End(pusher.Push(ctx, n))
	}
}

// AttendanceCloser runs the stale-shift sweep. Implemented by
// attendance.Service.
type AttendanceCloser interface {
	AutoCloseStale(ctx context.Context) (int, error)
}

// NewAttendanceAutoCloseHandler builds the TaskAttendanceAutoClose handler.
func NewAttendanceAutoCloseHandler(closer AttendanceCloser, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		track := metrics.Track("attendance_auto_close")
		closed, err := closer.AutoCloseStale(ctx)
		if err != nil {
			return track.End(err)
		}
		metrics.AddAutoClosures(closed)
		if closed > 0 {
			logger.Info("attendance auto-close", "closed", closed)
		}
		return track.End(nil)
	}
}

// KeyCleaner prunes old idempotency keys. Implemented by
// shared.IdempotencyStore.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupHandler builds the TaskIdempotencyCleanup handler.
func NewIdempotencyCleanupHandler(cleaner KeyCleaner, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		track := metrics.Track("idempotency_cleanup")
		return track.End(cleaner.Cleanup(ctx, 48*time.Hour))
	}
}
