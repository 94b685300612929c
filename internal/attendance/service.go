package attendance

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/crewdeck/crewdeck/internal/locations"
	"github.com/crewdeck/crewdeck/internal/rbac"
	"github.com/crewdeck/crewdeck/internal/shared"
)

var (
	// ErrAlreadyClockedIn indicates the user has an open record.
	ErrAlreadyClockedIn = errors.New("attendance: already clocked in")
	// ErrNotClockedIn indicates no open record to close.
	ErrNotClockedIn = errors.New("attendance: no open clock-in")
	// ErrOutsideGeofence indicates the clock-in position fell outside the site radius.
	ErrOutsideGeofence = errors.New("attendance: position outside location geofence")
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	OpenRecord(ctx context.Context, userID int64) (Record, error)
	CreateRecord(ctx context.Context, rec Record) (Record, error)
	CloseRecord(ctx context.Context, id int64, at time.Time, auto bool) (Record, error)
	ListRecords(ctx context.Context, filter ListFilter) ([]Record, int, error)
	StaleOpenRecords(ctx context.Context, cutoff time.Time) ([]Record, error)
}

// LocationResolver looks up a geofenced site.
type LocationResolver interface {
	GetLocation(ctx context.Context, id int64) (locations.Location, error)
}

// AlertSink receives operational attendance alerts, such as auto-closures.
type AlertSink interface {
	AttendanceAutoClosed(ctx context.Context, rec Record)
}

// Service implements clock-in and clock-out rules.
type Service struct {
	repo     RepositoryPort
	sites    LocationResolver
	idem     *shared.IdempotencyStore
	audit    *shared.AuditLogger
	alerts   AlertSink
	logger   *slog.Logger
	now      func() time.Time
	maxShift time.Duration
}

// NewService constructs the attendance service. alerts may be nil.
func NewService(repo RepositoryPort, sites LocationResolver, idem *shared.IdempotencyStore, audit *shared.AuditLogger, alerts AlertSink, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		sites:    sites,
		idem:     idem,
		audit:    audit,
		alerts:   alerts,
		logger:   logger,
		now:      time.Now,
		maxShift: 16 * time.Hour,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// ClockIn opens a new attendance record for the actor. When locationID is
// non-zero the position must fall inside that site's geofence.
func (s *Service) ClockIn(ctx context.Context, actor *shared.Principal, locationID int64, lat, lng float64, idemKey string) (Record, error) {
	if idemKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "attendance"); err != nil {
			return Record{}, err
		}
	}
	if _, err := s.repo.OpenRecord(ctx, actor.UserID); err == nil {
		return Record{}, ErrAlreadyClockedIn
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Record{}, err
	}
	if locationID != 0 {
		site, err := s.sites.GetLocation(ctx, locationID)
		if err != nil {
			return Record{}, err
		}
		if !site.Contains(lat, lng) {
			return Record{}, ErrOutsideGeofence
		}
	}
	rec, err := s.repo.CreateRecord(ctx, Record{
		UserID:     actor.UserID,
		LocationID: locationID,
		ClockInAt:  s.now(),
		ClockInLat: lat,
		ClockInLng: lng,
	})
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, actor.UserID, "attendance.clock_in", rec.ID)
	return rec, nil
}

// ClockOut closes the actor's open record.
func (s *Service) ClockOut(ctx context.Context, actor *shared.Principal) (Record, error) {
	open, err := s.repo.OpenRecord(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Record{}, ErrNotClockedIn
		}
		return Record{}, err
	}
	rec, err := s.repo.CloseRecord(ctx, open.ID, s.now(), false)
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, actor.UserID, "attendance.clock_out", rec.ID)
	return rec, nil
}

// List returns attendance records. Callers without an "any" scope only
// see their own.
func (s *Service) List(ctx context.Context, actor *shared.Principal, scope string, filter ListFilter) ([]Record, shared.Pagination, error) {
	if scope != rbac.ScopeAny {
		filter.UserID = actor.UserID
	}
	items, total, err := s.repo.ListRecords(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, recordID int64) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "attendance",
		EntityID: strconv.FormatInt(recordID, 10),
	})
	if err != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}

// AutoCloseStale closes records left open longer than the maximum shift.
// Called from the worker on a schedule.
func (s *Service) AutoCloseStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxShift)
	stale, err := s.repo.StaleOpenRecords(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, rec := range stale {
		done, err := s.repo.CloseRecord(ctx, rec.ID, rec.ClockInAt.Add(s.maxShift), true)
		if err != nil {
			s.logger.Error("attendance auto-close failed", "record_id", rec.ID, "error", err)
			continue
		}
		closed++
		if s.alerts != nil {
			s.alerts.AttendanceAutoClosed(ctx, done)
		}
	}
	return closed, nil
}
