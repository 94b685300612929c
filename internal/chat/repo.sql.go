package chat

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdeck/crewdeck/internal/shared"
)

// Repository persists chat rooms, memberships and messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roomColumns = `id, type, COALESCE(name, ''), COALESCE(task_id, 0), created_by, created_at`

func scanRoom(row pgx.Row) (Room, error) {
	var room Room
	err := row.Scan(&room.ID, &room.Type, &room.Name, &room.TaskID, &room.CreatedBy, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, shared.ErrNotFound
		}
		return Room{}, err
	}
	return room, nil
}

// CreateRoom inserts a room.
func (r *Repository) CreateRoom(ctx context.Context, room Room) (Room, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO chat_rooms (type, name, task_id, created_by)
VALUES ($1, NULLIF($2, ''), NULLIF($3, 0), $4)
RETURNING `+roomColumns, room.Type, room.Name, room.TaskID, room.CreatedBy)
	return scanRoom(row)
}

// GetRoom returns a room by id.
func (r *Repository) GetRoom(ctx context.Context, id int64) (Room, error) {
	return scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1`, id))
}

// FindDirectRoom returns the direct room shared by the two users, if any.
func (r *Repository) FindDirectRoom(ctx context.Context, userA, userB int64) (Room, error) {
	return scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM chat_rooms
WHERE type = 'direct' AND id IN (
	SELECT room_id FROM chat_room_members WHERE user_id = $1
	INTERSECT
	SELECT room_id FROM chat_room_members WHERE user_id = $2
) LIMIT 1`, userA, userB))
}

// FindTaskRoom returns the room attached to a task, if any.
func (r *Repository) FindTaskRoom(ctx context.Context, taskID int64) (Room, error) {
	return scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM chat_rooms
WHERE type = 'task' AND task_id = $1`, taskID))
}

// ListRoomsForUser returns the rooms the user belongs to.
func (r *Repository) ListRoomsForUser(ctx context.Context, userID int64) ([]Room, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roomColumns+` FROM chat_rooms
WHERE id IN (SELECT room_id FROM chat_room_members WHERE user_id = $1)
ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

// AddMember adds a user to a room. Re-adding an existing member is a
// no-op.
func (r *Repository) AddMember(ctx context.Context, roomID, userID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO chat_room_members (room_id, user_id)
VALUES ($1, $2) ON CONFLICT (room_id, user_id) DO NOTHING`, roomID, userID)
	return err
}

// RemoveMember removes a user from a room.
func (r *Repository) RemoveMember(ctx context.Context, roomID, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chat_room_members WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	return err
}

// IsMember reports whether the user belongs to the room.
func (r *Repository) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM chat_room_members WHERE room_id = $1 AND user_id = $2)`, roomID, userID).Scan(&exists)
	return exists, err
}

// MemberIDs returns the user ids of every room member.
func (r *Repository) MemberIDs(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM chat_room_members WHERE room_id = $1`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// InsertMessage persists a message.
func (r *Repository) InsertMessage(ctx context.Context, msg Message) (Message, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO chat_messages (message_id, room_id, sender_id, sender_name, body, sent_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, message_id, room_id, sender_id, sender_name, body, sent_at`,
		msg.MessageID, msg.RoomID, msg.SenderID, msg.SenderName, msg.Body, msg.SentAt)
	var out Message
	err := row.Scan(&out.ID, &out.MessageID, &out.RoomID, &out.SenderID, &out.SenderName, &out.Body, &out.SentAt)
	return out, err
}

// ListMessages returns room history, newest first.
func (r *Repository) ListMessages(ctx context.Context, roomID int64, page, perPage int) ([]Message, int, error) {
	if perPage <= 0 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages WHERE room_id = $1`, roomID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, message_id, room_id, sender_id, sender_name, body, sent_at
FROM chat_messages WHERE room_id = $1
ORDER BY sent_at DESC LIMIT $2 OFFSET $3`, roomID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.MessageID, &msg.RoomID, &msg.SenderID, &msg.SenderName, &msg.Body, &msg.SentAt); err != nil {
			return nil, 0, err
		}
		out = append(out, msg)
	}
	return out, total, rows.Err()
}
