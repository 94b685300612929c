package attendance

import (
	"context"
	"errors"
	"time"

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

const recordColumns = `id, user_id, COALESCE(location_id, 0), clock_in_at, clock_out_at, clock_in_lat, clock_in_lng, auto_closed, created_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.UserID, &rec.LocationID, &rec.ClockInAt, &rec.ClockOutAt, &rec.ClockInLat, &rec.ClockInLng, &rec.AutoClosed, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, shared.ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// OpenRecord returns the user's record without a clock-out, if any.
func (r *Repository) OpenRecord(ctx context.Context, userID int64) (Record, error) {
	return scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+`
FROM attendance WHERE user_id = $1 AND clock_out_at IS NULL
ORDER BY clock_in_at DESC LIMIT 1`, userID))
}

// CreateRecord inserts a clock-in.
func (r *Repository) CreateRecord(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO attendance (user_id, location_id, clock_in_at, clock_in_lat, clock_in_lng)
VALUES ($1, NULLIF($2, 0), $3, $4, $5)
RETURNING `+recordColumns,
		rec.UserID, rec.LocationID, rec.ClockInAt, rec.ClockInLat, rec.ClockInLng)
	return scanRecord(row)
}

// CloseRecord stamps the clock-out time on an open record.
func (r *Repository) CloseRecord(ctx context.Context, id int64, at time.Time, auto bool) (Record, error) {
	row := r.pool.QueryRow(ctx, `UPDATE attendance SET clock_out_at = $2, auto_closed = $3
WHERE id = $1 AND clock_out_at IS NULL
RETURNING `+recordColumns, id, at, auto)
	return scanRecord(row)
}

// ListRecords returns attendance records matching the filter, newest first.
func (r *Repository) ListRecords(ctx context.Context, filter ListFilter) ([]Record, int, error) {
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	where := ` WHERE ($1 = 0 OR user_id = $1)
AND ($2::timestamptz IS NULL OR clock_in_at >= $2)
AND ($3::timestamptz IS NULL OR clock_in_at < $3)`
	from := nullableTime(filter.From)
	to := nullableTime(filter.To)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance`+where, filter.UserID, from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM attendance`+where+`
ORDER BY clock_in_at DESC LIMIT $4 OFFSET $5`, filter.UserID, from, to, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// StaleOpenRecords returns open records whose clock-in is older than the
// cutoff, for the auto-close job.
func (r *Repository) StaleOpenRecords(ctx context.Context, cutoff time.Time) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+`
FROM attendance WHERE clock_out_at IS NULL AND clock_in_at < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
