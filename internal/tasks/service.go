package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/crewdeck/crewdeck/internal/rbac"
	"github.com/crewdeck/crewdeck/internal/shared"
)

var (
	// ErrInvalidTransition indicates a workflow violation.
	ErrInvalidTransition = errors.New("tasks: invalid status transition")
	// ErrNotAssignee indicates an assigned-scope actor touching someone
	// else's task.
	ErrNotAssignee = errors.New("tasks: not the assignee")
)

// RepositoryPort defines data access methods for tasks.
type RepositoryPort interface {
	ListTasks(ctx context.Context, filter ListFilter) ([]Task, int, error)
	GetTask(ctx context.Context, id int64) (Task, error)
	CreateTask(ctx context.Context, task Task) (Task, error)
	UpdateTask(ctx context.Context, task Task) (Task, error)
	SetStatus(ctx context.Context, id int64, from, to Status) (Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Notifier fans out task activity to the affected users. Implemented by
// notifications.Service; failures are logged, never surfaced.
type Notifier interface {
	TaskAssigned(ctx context.Context, task Task) error
	TaskStatusChanged(ctx context.Context, task Task, actorID int64) error
}

// Service handles the task workflow.
type Service struct {
	repo      RepositoryPort
	approvals *shared.ApprovalRecorder
	audit     *shared.AuditLogger
	notifier  Notifier
	logger    *slog.Logger
}

// NewService builds a Service instance. approvals, audit and notifier may
// be nil in tests.
func NewService(repo RepositoryPort, approvals *shared.ApprovalRecorder, audit *shared.AuditLogger, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, approvals: approvals, audit: audit, notifier: notifier, logger: logger}
}

// List returns tasks visible under the actor's scope: an "assigned" grant
// only sees the actor's own tasks.
func (s *Service) List(ctx context.Context, actor *shared.Principal, scope string, filter ListFilter) ([]Task, shared.Pagination, error) {
	if scope == rbac.ScopeAssigned {
		filter.AssigneeID = actor.UserID
	}
	items, total, err := s.repo.ListTasks(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Get fetches a task, enforcing assigned-scope visibility.
func (s *Service) Get(ctx context.Context, actor *shared.Principal, scope string, id int64) (Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if scope == rbac.ScopeAssigned && task.AssigneeID != actor.UserID && task.CreatedBy != actor.UserID {
		return Task{}, shared.ErrNotFound
	}
	return task, nil
}

// Create inserts a pending task and notifies the assignee when set.
func (s *Service) Create(ctx context.Context, actor *shared.Principal, task Task) (Task, error) {
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return Task{}, errors.New("tasks: title required")
	}
	task.Status = StatusPending
	task.CreatedBy = actor.UserID
	created, err := s.repo.CreateTask(ctx, task)
	if err != nil {
		return Task{}, err
	}
	s.recordAudit(ctx, actor.UserID, "task.create", created.ID)
	if created.AssigneeID != 0 {
		s.notifyAssigned(ctx, created)
	}
	return created, nil
}

// Update edits task fields; a change of assignee re-notifies.
func (s *Service) Update(ctx context.Context, actor *shared.Principal, task Task) (Task, error) {
	current, err := s.repo.GetTask(ctx, task.ID)
	if err != nil {
		return Task{}, err
	}
	updated, err := s.repo.UpdateTask(ctx, task)
	if err != nil {
		return Task{}, err
	}
	s.recordAudit(ctx, actor.UserID, "task.update", updated.ID)
	if updated.AssigneeID != 0 && updated.AssigneeID != current.AssigneeID {
		s.notifyAssigned(ctx, updated)
	}
	return updated, nil
}

// Transition moves a task through the workflow. Submit is reserved for the
// assignee under assigned scope; approval actions are recorded in the
// approval log.
func (s *Service) Transition(ctx context.Context, actor *shared.Principal, scope string, id int64, to Status, note string) (Task, error) {
	if !to.Valid() {
		return Task{}, ErrInvalidTransition
	}
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if scope == rbac.ScopeAssigned && task.AssigneeID != actor.UserID {
		return Task{}, ErrNotAssignee
	}
	if !task.Status.CanTransition(to) {
		return Task{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status, to)
	}
	updated, err := s.repo.SetStatus(ctx, id, task.Status, to)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Lost the race against a concurrent transition.
			return Task{}, ErrInvalidTransition
		}
		return Task{}, err
	}
	s.recordApproval(ctx, actor.UserID, updated.ID, to, note)
	s.recordAudit(ctx, actor.UserID, "task."+string(to), updated.ID)
	if s.notifier != nil {
		if err := s.notifier.TaskStatusChanged(ctx, updated, actor.UserID); err != nil {
			s.logger.Warn("notify task status", slog.Any("error", err))
		}
	}
	return updated, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, actor *shared.Principal, id int64) error {
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "task.delete", id)
	return nil
}

// History lists the approval trail for a task.
func (s *Service) History(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, "tasks", id)
}

func (s *Service) notifyAssigned(ctx context.Context, task Task) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TaskAssigned(ctx, task); err != nil {
		s.logger.Warn("notify task assigned", slog.Any("error", err))
	}
}

func (s *Service) recordApproval(ctx context.Context, actorID, taskID int64, to Status, note string) {
	if s.approvals == nil {
		return
	}
	var action shared.ApprovalAction
	switch to {
	case StatusSubmitted:
		action = shared.ApprovalSubmit
	case StatusApproved:
		action = shared.ApprovalApprove
	case StatusRejected:
		action = shared.ApprovalReject
	default:
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  "tasks",
		RefID:   taskID,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	})
	if err != nil {
		s.logger.Warn("record task approval", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, taskID int64) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "task",
		EntityID: strconv.FormatInt(taskID, 10),
	})
	if err != nil {
		s.logger.Warn("audit task action", slog.Any("error", err))
	}
}
