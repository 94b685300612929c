package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdeck/crewdeck/internal/shared"
)

// Repository persists notifications in PostgreSQL. The payload column is
// JSONB, decoded per type on the way out.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	var raw []byte
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &raw, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, shared.ErrNotFound
		}
		return Notification{}, err
	}
	n.Payload, err = decodePayload(n.Type, raw)
	return n, err
}

// CreateNotification inserts a notification.
func (r *Repository) CreateNotification(ctx context.Context, n Notification) (Notification, error) {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return Notification{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO notifications (user_id, type, payload, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, type, payload, read_at, created_at`,
		n.UserID, n.Type, payload, time.Now())
	return scanNotification(row)
}

// GetNotification returns a single notification.
func (r *Repository) GetNotification(ctx context.Context, id int64) (Notification, error) {
	return scanNotification(r.pool.QueryRow(ctx, `SELECT id, user_id, type, payload, read_at, created_at
FROM notifications WHERE id = $1`, id))
}

// ListNotifications returns a user's notifications, newest first.
// unreadOnly restricts to records without a read timestamp.
func (r *Repository) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, page, perPage int) ([]Notification, int, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	where := ` WHERE user_id = $1 AND ($2 = FALSE OR read_at IS NULL)`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+where, userID, unreadOnly).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, type, payload, read_at, created_at
FROM notifications`+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		userID, unreadOnly, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// MarkRead stamps a single notification as read; scoped to the owner.
func (r *Repository) MarkRead(ctx context.Context, userID, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at = $3
WHERE id = $1 AND user_id = $2 AND read_at IS NULL`, id, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkAllRead stamps every unread notification for the user.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at = $2
WHERE user_id = $1 AND read_at IS NULL`, userID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
