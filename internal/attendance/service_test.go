package attendance

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/locations"
	"github.com/crewdeck/crewdeck/internal/rbac"
	"github.com/crewdeck/crewdeck/internal/shared"
)

type memoryRepo struct {
	nextID  int64
	records map[int64]Record
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, records: make(map[int64]Record)}
}

func (r *memoryRepo) OpenRecord(ctx context.Context, userID int64) (Record, error) {
	for _, rec := range r.records {
		if rec.UserID == userID && rec.ClockOutAt == nil {
			return rec, nil
		}
	}
	return Record{}, shared.ErrNotFound
}

func (r *memoryRepo) CreateRecord(ctx context.Context, rec Record) (Record, error) {
	rec.ID = r.nextID
	r.nextID++
	rec.CreatedAt = time.Now()
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *memoryRepo) CloseRecord(ctx context.Context, id int64, at time.Time, auto bool) (Record, error) {
	rec, ok := r.records[id]
	if !ok || rec.ClockOutAt != nil {
		return Record{}, shared.ErrNotFound
	}
	rec.ClockOutAt = &at
	rec.AutoClosed = auto
	r.records[id] = rec
	return rec, nil
}

func (r *memoryRepo) ListRecords(ctx context.Context, filter ListFilter) ([]Record, int, error) {
	var out []Record
	for _, rec := range r.records {
		if filter.UserID != 0 && rec.UserID != filter.UserID {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (r *memoryRepo) StaleOpenRecords(ctx context.Context, cutoff time.Time) ([]Record, error) {
	var out []Record
	for _, rec := range r.records {
		if rec.ClockOutAt == nil && rec.ClockInAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type staticSites struct {
	site locations.Location
}

func (s staticSites) GetLocation(ctx context.Context, id int64) (locations.Location, error) {
	if id != s.site.ID {
		return locations.Location{}, shared.ErrNotFound
	}
	return s.site, nil
}

type recordingAlerts struct {
	closed []Record
}

func (a *recordingAlerts) AttendanceAutoClosed(ctx context.Context, rec Record) {
	a.closed = append(a.closed, rec)
}

func newTestService() (*Service, *memoryRepo, *recordingAlerts) {
	repo := newMemoryRepo()
	sites := staticSites{site: locations.Location{
		ID: 1, Name: "Head Office", Latitude: -6.1754, Longitude: 106.8272, RadiusM: 200,
	}}
	alerts := &recordingAlerts{}
	svc := NewService(repo, sites, nil, nil, alerts, slog.Default())
	return svc, repo, alerts
}

func actor() *shared.Principal { return &shared.Principal{UserID: 7, Role: "employee"} }

func TestClockInAndOut(t *testing.T) {
	svc, _, _ := newTestService()
	start := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return start })

	rec, err := svc.ClockIn(context.Background(), actor(), 1, -6.1754, 106.8272, "")
	require.NoError(t, err)
	require.Equal(t, int64(7), rec.UserID)
	require.Equal(t, start, rec.ClockInAt)
	require.Nil(t, rec.ClockOutAt)

	end := start.Add(8 * time.Hour)
	svc.WithNow(func() time.Time { return end })
	closed, err := svc.ClockOut(context.Background(), actor())
	require.NoError(t, err)
	require.NotNil(t, closed.ClockOutAt)
	require.Equal(t, end, *closed.ClockOutAt)
	require.False(t, closed.AutoClosed)
}

func TestClockInTwiceRejected(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.ClockIn(context.Background(), actor(), 1, -6.1754, 106.8272, "")
	require.NoError(t, err)

	_, err = svc.ClockIn(context.Background(), actor(), 1, -6.1754, 106.8272, "")
	require.ErrorIs(t, err, ErrAlreadyClockedIn)
}

func TestClockInOutsideGeofence(t *testing.T) {
	svc, repo, _ := newTestService()

	// About a kilometer away from the site center.
	_, err := svc.ClockIn(context.Background(), actor(), 1, -6.1854, 106.8272, "")
	require.ErrorIs(t, err, ErrOutsideGeofence)
	require.Empty(t, repo.records)
}

func TestClockInWithoutLocationSkipsGeofence(t *testing.T) {
	svc, _, _ := newTestService()

	rec, err := svc.ClockIn(context.Background(), actor(), 0, 0, 0, "")
	require.NoError(t, err)
	require.Zero(t, rec.LocationID)
}

func TestClockInUnknownLocation(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.ClockIn(context.Background(), actor(), 99, -6.1754, 106.8272, "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestClockOutWithoutOpenRecord(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.ClockOut(context.Background(), actor())
	require.ErrorIs(t, err, ErrNotClockedIn)
}

func TestListScopesToActor(t *testing.T) {
	svc, repo, _ := newTestService()
	now := time.Now()
	out := now.Add(time.Hour)
	repo.records[1] = Record{ID: 1, UserID: 7, ClockInAt: now, ClockOutAt: &out}
	repo.records[2] = Record{ID: 2, UserID: 8, ClockInAt: now, ClockOutAt: &out}
	repo.nextID = 3

	own, _, err := svc.List(context.Background(), actor(), rbac.ScopeAssigned, ListFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, int64(7), own[0].UserID)

	all, _, err := svc.List(context.Background(), actor(), rbac.ScopeAny, ListFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestAutoCloseStale(t *testing.T) {
	svc, repo, alerts := newTestService()
	now := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })

	stale := now.Add(-20 * time.Hour)
	fresh := now.Add(-2 * time.Hour)
	repo.records[1] = Record{ID: 1, UserID: 7, ClockInAt: stale}
	repo.records[2] = Record{ID: 2, UserID: 8, ClockInAt: fresh}
	repo.nextID = 3

	closed, err := svc.AutoCloseStale(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	rec := repo.records[1]
	require.NotNil(t, rec.ClockOutAt)
	require.True(t, rec.AutoClosed)
	require.Equal(t, stale.Add(16*time.Hour), *rec.ClockOutAt)
	require.Nil(t, repo.records[2].ClockOutAt)

	require.Len(t, alerts.closed, 1)
	require.Equal(t, int64(1), alerts.closed[0].ID)
}
