package users

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, page, perPage int) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	SetPasswordHash(ctx context.Context, id int64, hash string) error
}

// Service handles user management business logic.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListUsers returns one page of users and pagination metadata.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	users, total, err := s.repo.ListUsers(ctx, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(page, perPage, total), nil
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser creates an account. The plaintext credential is hashed
// exactly once, here, with the shared work factor.
func (s *Service) CreateUser(ctx context.Context, actorID int64, user User, password string) (User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" {
		return User{}, errors.New("users: email required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	user.PasswordHash = hash
	created, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actorID, "user.create", created.ID)
	return created, nil
}

// UpdateUser updates account attributes. Credential changes go through
// ChangePassword only.
func (s *Service) UpdateUser(ctx context.Context, actorID int64, user User) (User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	updated, err := s.repo.UpdateUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actorID, "user.update", updated.ID)
	return updated, nil
}

// ChangePassword re-hashes and stores a new credential.
func (s *Service) ChangePassword(ctx context.Context, actorID, userID int64, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.SetPasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "user.password", userID)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
	})
	if err != nil {
		s.logger.Warn("audit user action", slog.Any("error", err))
	}
}
