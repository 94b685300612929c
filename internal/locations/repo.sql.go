package locations

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

const locationColumns = `id, name, address, lat, lng, radius_m, created_at, updated_at`

func scanLocation(row pgx.Row) (Location, error) {
	var loc Location
	err := row.Scan(&loc.ID, &loc.Name, &loc.Address, &loc.Latitude, &loc.Longitude, &loc.RadiusM, &loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, shared.ErrNotFound
		}
		return Location{}, err
	}
	return loc, nil
}

// ListLocations returns all sites ordered by name.
func (r *Repository) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// GetLocation fetches a site by ID.
func (r *Repository) GetLocation(ctx context.Context, id int64) (Location, error) {
	return scanLocation(r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
}

// CreateLocation inserts a new site.
func (r *Repository) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO locations (name, address, lat, lng, radius_m)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+locationColumns,
		loc.Name, loc.Address, loc.Latitude, loc.Longitude, loc.RadiusM)
	return scanLocation(row)
}

// UpdateLocation updates a site.
func (r *Repository) UpdateLocation(ctx context.Context, loc Location) (Location, error) {
	row := r.pool.QueryRow(ctx, `UPDATE locations
SET name = $2, address = $3, lat = $4, lng = $5, radius_m = $6, updated_at = NOW()
WHERE id = $1
RETURNING `+locationColumns,
		loc.ID, loc.Name, loc.Address, loc.Latitude, loc.Longitude, loc.RadiusM)
	return scanLocation(row)
}

// DeleteLocation removes a site by ID.
func (r *Repository) DeleteLocation(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
