package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for permissions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRolePermissions returns the permission triples attached to a role.
// A deleted or unknown role yields an empty set.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID int64) (PermissionSet, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.module, p.action, p.scope
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
WHERE rp.role_id = $1
ORDER BY p.module, p.action, p.scope`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var set PermissionSet
	for rows.Next() {
		var p Permission
		var action string
		if err := rows.Scan(&p.ID, &p.Module, &action, &p.Scope); err != nil {
			return nil, err
		}
		p.Action = Action(action)
		set = append(set, p.Normalize())
	}
	return set, rows.Err()
}

// ListPermissions returns every known permission triple.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, module, action, scope FROM permissions ORDER BY module, action, scope`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		var action string
		if err := rows.Scan(&p.ID, &p.Module, &action, &p.Scope); err != nil {
			return nil, err
		}
		p.Action = Action(action)
		perms = append(perms, p.Normalize())
	}
	return perms, rows.Err()
}

// EnsurePermission upserts a permission triple and returns its record.
func (r *Repository) EnsurePermission(ctx context.Context, p Permission) (Permission, error) {
	p = p.Normalize()
	row := r.pool.QueryRow(ctx, `INSERT INTO permissions (module, action, scope)
VALUES ($1, $2, $3)
ON CONFLICT (module, action, scope) DO UPDATE SET module = EXCLUDED.module
RETURNING id`, p.Module, string(p.Action), p.Scope)
	if err := row.Scan(&p.ID); err != nil {
		return Permission{}, err
	}
	return p, nil
}

// AttachPermission links a permission to a role, ignoring duplicates.
func (r *Repository) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, permissionID)
	return err
}

// DetachPermission unlinks a permission from a role.
func (r *Repository) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}
