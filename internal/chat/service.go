package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/crewdeck/crewdeck/internal/realtime"
	"github.com/crewdeck/crewdeck/internal/shared"
)

var (
	// ErrNotMember indicates the actor does not belong to the room.
	ErrNotMember = errors.New("chat: not a room member")
	// ErrInvalidRoom indicates a malformed room request.
	ErrInvalidRoom = errors.New("chat: invalid room")
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id int64) (Room, error)
	FindDirectRoom(ctx context.Context, userA, userB int64) (Room, error)
	FindTaskRoom(ctx context.Context, taskID int64) (Room, error)
	ListRoomsForUser(ctx context.Context, userID int64) ([]Room, error)
	AddMember(ctx context.Context, roomID, userID int64) error
	RemoveMember(ctx context.Context, roomID, userID int64) error
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	MemberIDs(ctx context.Context, roomID int64) ([]int64, error)
	InsertMessage(ctx context.Context, msg Message) (Message, error)
	ListMessages(ctx context.Context, roomID int64, page, perPage int) ([]Message, int, error)
}

// Service owns chat rooms and message history. Live relay happens in the
// realtime layer; this service is the durable side.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs the chat service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// OpenDirectRoom returns the direct room between the actor and the other
// user, creating it on first use.
func (s *Service) OpenDirectRoom(ctx context.Context, actor *shared.Principal, otherID int64) (Room, error) {
	if otherID == 0 || otherID == actor.UserID {
		return Room{}, ErrInvalidRoom
	}
	room, err := s.repo.FindDirectRoom(ctx, actor.UserID, otherID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Room{}, err
	}
	room, err = s.repo.CreateRoom(ctx, Room{Type: RoomDirect, CreatedBy: actor.UserID})
	if err != nil {
		return Room{}, err
	}
	for _, userID := range []int64{actor.UserID, otherID} {
		if err := s.repo.AddMember(ctx, room.ID, userID); err != nil {
			return Room{}, err
		}
	}
	return room, nil
}

// CreateGroupRoom creates a named group room with the actor plus the
// given members.
func (s *Service) CreateGroupRoom(ctx context.Context, actor *shared.Principal, name string, memberIDs []int64) (Room, error) {
	if name == "" {
		return Room{}, ErrInvalidRoom
	}
	room, err := s.repo.CreateRoom(ctx, Room{Type: RoomGroup, Name: name, CreatedBy: actor.UserID})
	if err != nil {
		return Room{}, err
	}
	if err := s.repo.AddMember(ctx, room.ID, actor.UserID); err != nil {
		return Room{}, err
	}
	for _, userID := range memberIDs {
		if userID == actor.UserID {
			continue
		}
		if err := s.repo.AddMember(ctx, room.ID, userID); err != nil {
			return Room{}, err
		}
	}
	return room, nil
}

// EnsureTaskRoom returns the room attached to a task, creating it on
// first use and adding the caller as a member.
func (s *Service) EnsureTaskRoom(ctx context.Context, actor *shared.Principal, taskID int64) (Room, error) {
	if taskID == 0 {
		return Room{}, ErrInvalidRoom
	}
	room, err := s.repo.FindTaskRoom(ctx, taskID)
	if errors.Is(err, shared.ErrNotFound) {
		room, err = s.repo.CreateRoom(ctx, Room{Type: RoomTask, TaskID: taskID, CreatedBy: actor.UserID})
	}
	if err != nil {
		return Room{}, err
	}
	if err := s.repo.AddMember(ctx, room.ID, actor.UserID); err != nil {
		return Room{}, err
	}
	return room, nil
}

// ListRooms returns the actor's rooms.
func (s *Service) ListRooms(ctx context.Context, actor *shared.Principal) ([]Room, error) {
	return s.repo.ListRoomsForUser(ctx, actor.UserID)
}

// History returns room message history for a member, newest first.
func (s *Service) History(ctx context.Context, actor *shared.Principal, roomID int64, page, perPage int) ([]Message, shared.Pagination, error) {
	member, err := s.repo.IsMember(ctx, roomID, actor.UserID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if !member {
		return nil, shared.Pagination{}, ErrNotMember
	}
	items, total, err := s.repo.ListMessages(ctx, roomID, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// Leave removes the actor from a room.
func (s *Service) Leave(ctx context.Context, actor *shared.Principal, roomID int64) error {
	return s.repo.RemoveMember(ctx, roomID, actor.UserID)
}

// ArchiveMessage persists a relayed chat envelope. Senders that are not
// room members are rejected.
func (s *Service) ArchiveMessage(ctx context.Context, msg realtime.ChatMessage) error {
	member, err := s.repo.IsMember(ctx, msg.RoomID, msg.SenderID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotMember
	}
	_, err = s.repo.InsertMessage(ctx, Message{
		MessageID:  msg.ID,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Body:       msg.Body,
		SentAt:     msg.SentAt,
	})
	return err
}

// RoomMemberIDs resolves room membership for notification fan-out.
func (s *Service) RoomMemberIDs(ctx context.Context, roomType string, roomID int64) ([]int64, error) {
	return s.repo.MemberIDs(ctx, roomID)
}
