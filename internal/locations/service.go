package locations

import (
	"context"
	"errors"
	"strings"
)

// RepositoryPort defines data access methods for locations.
type RepositoryPort interface {
	ListLocations(ctx context.Context) ([]Location, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	CreateLocation(ctx context.Context, loc Location) (Location, error)
	UpdateLocation(ctx context.Context, loc Location) (Location, error)
	DeleteLocation(ctx context.Context, id int64) error
}

// Service handles geofenced site management.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListLocations returns all sites.
func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx)
}

// GetLocation fetches a site.
func (s *Service) GetLocation(ctx context.Context, id int64) (Location, error) {
	return s.repo.GetLocation(ctx, id)
}

// CreateLocation validates and inserts a site.
func (s *Service) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	if err := validate(&loc); err != nil {
		return Location{}, err
	}
	return s.repo.CreateLocation(ctx, loc)
}

// UpdateLocation validates and updates a site.
func (s *Service) UpdateLocation(ctx context.Context, loc Location) (Location, error) {
	if err := validate(&loc); err != nil {
		return Location{}, err
	}
	return s.repo.UpdateLocation(ctx, loc)
}

// DeleteLocation removes a site.
func (s *Service) DeleteLocation(ctx context.Context, id int64) error {
	return s.repo.DeleteLocation(ctx, id)
}

func validate(loc *Location) error {
	loc.Name = strings.TrimSpace(loc.Name)
	if loc.Name == "" {
		return errors.New("locations: name required")
	}
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return errors.New("locations: coordinates out of range")
	}
	if loc.RadiusM < 0 {
		return errors.New("locations: radius must not be negative")
	}
	return nil
}
