package tasks

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/rbac"
	"github.com/crewdeck/crewdeck/internal/shared"
)

type memoryRepo struct {
	nextID int64
	tasks  map[int64]Task
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, tasks: make(map[int64]Task)}
}

func (r *memoryRepo) ListTasks(ctx context.Context, filter ListFilter) ([]Task, int, error) {
	var out []Task
	for _, t := range r.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.AssigneeID != 0 && t.AssigneeID != filter.AssigneeID {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetTask(ctx context.Context, id int64) (Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, shared.ErrNotFound
	}
	return t, nil
}

func (r *memoryRepo) CreateTask(ctx context.Context, task Task) (Task, error) {
	task.ID = r.nextID
	r.nextID++
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	r.tasks[task.ID] = task
	return task, nil
}

func (r *memoryRepo) UpdateTask(ctx context.Context, task Task) (Task, error) {
	current, ok := r.tasks[task.ID]
	if !ok {
		return Task{}, shared.ErrNotFound
	}
	current.Title = task.Title
	current.Description = task.Description
	current.AssigneeID = task.AssigneeID
	current.LocationID = task.LocationID
	current.DueAt = task.DueAt
	current.UpdatedAt = time.Now()
	r.tasks[task.ID] = current
	return current, nil
}

func (r *memoryRepo) SetStatus(ctx context.Context, id int64, from, to Status) (Task, error) {
	t, ok := r.tasks[id]
	if !ok || t.Status != from {
		return Task{}, shared.ErrNotFound
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	r.tasks[id] = t
	return t, nil
}

func (r *memoryRepo) DeleteTask(ctx context.Context, id int64) error {
	if _, ok := r.tasks[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

type recordingNotifier struct {
	assigned []Task
	status   []Task
	actors   []int64
}

func (n *recordingNotifier) TaskAssigned(ctx context.Context, task Task) error {
	n.assigned = append(n.assigned, task)
	return nil
}

func (n *recordingNotifier) TaskStatusChanged(ctx context.Context, task Task, actorID int64) error {
	n.status = append(n.status, task)
	n.actors = append(n.actors, actorID)
	return nil
}

func newTestService() (*Service, *memoryRepo, *recordingNotifier) {
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	svc := NewService(repo, nil, nil, notifier, slog.Default())
	return svc, repo, notifier
}

func manager() *shared.Principal { return &shared.Principal{UserID: 1, Role: "manager"} }
func worker() *shared.Principal  { return &shared.Principal{UserID: 2, Role: "employee"} }

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusInProgress, StatusSubmitted, true},
		{StatusSubmitted, StatusApproved, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusRejected, StatusInProgress, true},
		{StatusPending, StatusApproved, false},
		{StatusPending, StatusSubmitted, false},
		{StatusInProgress, StatusApproved, false},
		{StatusApproved, StatusInProgress, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusSubmitted, false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestCreateNotifiesAssignee(t *testing.T) {
	svc, _, notifier := newTestService()

	created, err := svc.Create(context.Background(), manager(), Task{Title: "Restock shelves", AssigneeID: 2})
	require.NoError(t, err)
	require.Equal(t, StatusPending, created.Status)
	require.Equal(t, int64(1), created.CreatedBy)
	require.Len(t, notifier.assigned, 1)
	require.Equal(t, created.ID, notifier.assigned[0].ID)
}

func TestCreateWithoutAssigneeSkipsNotify(t *testing.T) {
	svc, _, notifier := newTestService()

	_, err := svc.Create(context.Background(), manager(), Task{Title: "Inventory count"})
	require.NoError(t, err)
	require.Empty(t, notifier.assigned)
}

func TestCreateRequiresTitle(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), manager(), Task{Title: "   "})
	require.Error(t, err)
}

func TestUpdateRenotifiesOnReassignment(t *testing.T) {
	svc, _, notifier := newTestService()
	created, err := svc.Create(context.Background(), manager(), Task{Title: "Audit stock", AssigneeID: 2})
	require.NoError(t, err)

	created.AssigneeID = 3
	_, err = svc.Update(context.Background(), manager(), created)
	require.NoError(t, err)
	require.Len(t, notifier.assigned, 2)
	require.Equal(t, int64(3), notifier.assigned[1].AssigneeID)

	// Same assignee: no extra notification.
	created.AssigneeID = 3
	created.Description = "count the back room too"
	_, err = svc.Update(context.Background(), manager(), created)
	require.NoError(t, err)
	require.Len(t, notifier.assigned, 2)
}

func TestTransitionWorkflow(t *testing.T) {
	svc, _, notifier := newTestService()
	created, err := svc.Create(context.Background(), manager(), Task{Title: "Fix door", AssigneeID: 2})
	require.NoError(t, err)

	updated, err := svc.Transition(context.Background(), worker(), rbac.ScopeAssigned, created.ID, StatusInProgress, "")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, updated.Status)

	updated, err = svc.Transition(context.Background(), worker(), rbac.ScopeAssigned, created.ID, StatusSubmitted, "done")
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, updated.Status)

	updated, err = svc.Transition(context.Background(), manager(), rbac.ScopeAny, created.ID, StatusApproved, "looks good")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, updated.Status)

	require.Len(t, notifier.status, 3)
	require.Equal(t, []int64{2, 2, 1}, notifier.actors)
}

func TestTransitionRejectedReturnsToInProgress(t *testing.T) {
	svc, repo, _ := newTestService()
	created, err := svc.Create(context.Background(), manager(), Task{Title: "Paint wall", AssigneeID: 2})
	require.NoError(t, err)

	seed := repo.tasks[created.ID]
	seed.Status = StatusSubmitted
	repo.tasks[created.ID] = seed

	_, err = svc.Transition(context.Background(), manager(), rbac.ScopeAny, created.ID, StatusRejected, "streaky")
	require.NoError(t, err)

	updated, err := svc.Transition(context.Background(), worker(), rbac.ScopeAssigned, created.ID, StatusInProgress, "")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, updated.Status)
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	svc, _, _ := newTestService()
	created, err := svc.Create(context.Background(), manager(), Task{Title: "Sweep", AssigneeID: 2})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), manager(), rbac.ScopeAny, created.ID, StatusApproved, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Transition(context.Background(), manager(), rbac.ScopeAny, created.ID, Status("archived"), "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionAssignedScopeGuardsAssignee(t *testing.T) {
	svc, _, _ := newTestService()
	created, err := svc.Create(context.Background(), manager(), Task{Title: "Mop floor", AssigneeID: 9})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), worker(), rbac.ScopeAssigned, created.ID, StatusInProgress, "")
	require.ErrorIs(t, err, ErrNotAssignee)
}

func TestListAssignedScopeFiltersToActor(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), manager(), Task{Title: "Mine", AssigneeID: 2})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), manager(), Task{Title: "Theirs", AssigneeID: 3})
	require.NoError(t, err)

	mine, _, err := svc.List(context.Background(), worker(), rbac.ScopeAssigned, ListFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Mine", mine[0].Title)

	all, _, err := svc.List(context.Background(), manager(), rbac.ScopeAny, ListFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestGetAssignedScopeHidesForeignTask(t *testing.T) {
	svc, _, _ := newTestService()
	created, err := svc.Create(context.Background(), manager(), Task{Title: "Private", AssigneeID: 9})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), worker(), rbac.ScopeAssigned, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// The creator still sees it under assigned scope.
	got, err := svc.Get(context.Background(), manager(), rbac.ScopeAssigned, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}

func TestDeleteRemovesTask(t *testing.T) {
	svc, repo, _ := newTestService()
	created, err := svc.Create(context.Background(), manager(), Task{Title: "Temp"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), manager(), created.ID))
	require.Empty(t, repo.tasks)
	require.ErrorIs(t, svc.Delete(context.Background(), manager(), created.ID), shared.ErrNotFound)
}
