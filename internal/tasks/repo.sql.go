package tasks

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdeck/crewdeck/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, title, description, status, created_by, COALESCE(assignee_id, 0), COALESCE(location_id, 0), due_at, created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var task Task
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Status, &task.CreatedBy, &task.AssigneeID, &task.LocationID, &task.DueAt, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, shared.ErrNotFound
		}
		return Task{}, err
	}
	return task, nil
}

// ListTasks returns tasks matching the filter, newest first.
func (r *Repository) ListTasks(ctx context.Context, filter ListFilter) ([]Task, int, error) {
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	where := ` WHERE ($1 = '' OR status = $1) AND ($2 = 0 OR assignee_id = $2)`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+where, string(filter.Status), filter.AssigneeID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks`+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		string(filter.Status), filter.AssigneeID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, task)
	}
	return out, total, rows.Err()
}

// GetTask fetches a task by ID.
func (r *Repository) GetTask(ctx context.Context, id int64) (Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// CreateTask inserts a new task.
func (r *Repository) CreateTask(ctx context.Context, task Task) (Task, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO tasks (title, description, status, created_by, assignee_id, location_id, due_at)
VALUES ($1, $2, $3, $4, NULLIF($5, 0), NULLIF($6, 0), $7)
RETURNING `+taskColumns,
		task.Title, task.Description, string(task.Status), task.CreatedBy, task.AssigneeID, task.LocationID, task.DueAt)
	return scanTask(row)
}

// UpdateTask updates mutable task fields.
func (r *Repository) UpdateTask(ctx context.Context, task Task) (Task, error) {
	row := r.pool.QueryRow(ctx, `UPDATE tasks
SET title = $2, description = $3, assignee_id = NULLIF($4, 0), location_id = NULLIF($5, 0), due_at = $6, updated_at = NOW()
WHERE id = $1
RETURNING `+taskColumns,
		task.ID, task.Title, task.Description, task.AssigneeID, task.LocationID, task.DueAt)
	return scanTask(row)
}

// SetStatus moves the task to a new workflow state, guarded by the
// expected current state so concurrent transitions cannot double-apply.
func (r *Repository) SetStatus(ctx context.Context, id int64, from, to Status) (Task, error) {
	row := r.pool.QueryRow(ctx, `UPDATE tasks SET status = $3, updated_at = NOW()
WHERE id = $1 AND status = $2
RETURNING `+taskColumns, id, string(from), string(to))
	return scanTask(row)
}

// DeleteTask removes a task by ID.
func (r *Repository) DeleteTask(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
