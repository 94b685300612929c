package rbac

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// PermissionSource loads permission triples from persistence.
type PermissionSource interface {
	ListRolePermissions(ctx context.Context, roleID int64) (PermissionSet, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsurePermission(ctx context.Context, p Permission) (Permission, error)
	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	DetachPermission(ctx context.Context, roleID, permissionID int64) error
}

// Service resolves permission snapshots and manages the permission catalog.
type Service struct {
	repo   PermissionSource
	cache  *SnapshotCache
	loads  singleflight.Group
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo PermissionSource, cache *SnapshotCache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Snapshot returns the permission set for a role. Cache failures degrade
// to a direct load; a role without rows resolves to the empty (deny-all)
// set rather than an error.
func (s *Service) Snapshot(ctx context.Context, roleID int64) (PermissionSet, error) {
	if roleID == 0 {
		return PermissionSet{}, nil
	}
	if set, ok, err := s.cache.Get(ctx, roleID); err != nil {
		s.logger.Warn("rbac snapshot cache read", slog.Any("error", err))
	} else if ok {
		return set, nil
	}
	// Collapse concurrent misses for the same role into one load.
	v, err, _ := s.loads.Do(strconv.FormatInt(roleID, 10), func() (any, error) {
		set, err := s.repo.ListRolePermissions(ctx, roleID)
		if err != nil {
			return nil, err
		}
		if set == nil {
			set = PermissionSet{}
		}
		if err := s.cache.Set(ctx, roleID, set); err != nil {
			s.logger.Warn("rbac snapshot cache write", slog.Any("error", err))
		}
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(PermissionSet), nil
}

// ListPermissions returns the full permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// EnsurePermission upserts a permission triple.
func (s *Service) EnsurePermission(ctx context.Context, p Permission) (Permission, error) {
	return s.repo.EnsurePermission(ctx, p)
}

// SetRolePermissions replaces the triples attached to a role and drops the
// cached snapshot.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	current, err := s.repo.ListRolePermissions(ctx, roleID)
	if err != nil {
		return err
	}
	existing := make(map[int64]struct{}, len(current))
	for _, p := range current {
		existing[p.ID] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		keep[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			if err := s.repo.AttachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	for id := range existing {
		if _, ok := keep[id]; !ok {
			if err := s.repo.DetachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	if err := s.cache.Invalidate(ctx, roleID); err != nil {
		s.logger.Warn("rbac snapshot invalidate", slog.Any("error", err))
	}
	return nil
}
