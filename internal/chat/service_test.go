package chat

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/realtime"
	"github.com/crewdeck/crewdeck/internal/shared"
)

type memoryRepo struct {
	nextRoomID int64
	nextMsgID  int64
	rooms      map[int64]Room
	members    map[int64]map[int64]struct{}
	messages   map[int64][]Message
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextRoomID: 1,
		nextMsgID:  1,
		rooms:      make(map[int64]Room),
		members:    make(map[int64]map[int64]struct{}),
		messages:   make(map[int64][]Message),
	}
}

func (r *memoryRepo) CreateRoom(ctx context.Context, room Room) (Room, error) {
	room.ID = r.nextRoomID
	r.nextRoomID++
	room.CreatedAt = time.Now()
	r.rooms[room.ID] = room
	r.members[room.ID] = make(map[int64]struct{})
	return room, nil
}

func (r *memoryRepo) GetRoom(ctx context.Context, id int64) (Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return Room{}, shared.ErrNotFound
	}
	return room, nil
}

func (r *memoryRepo) FindDirectRoom(ctx context.Context, userA, userB int64) (Room, error) {
	for id, room := range r.rooms {
		if room.Type != RoomDirect {
			continue
		}
		_, hasA := r.members[id][userA]
		_, hasB := r.members[id][userB]
		if hasA && hasB {
			return room, nil
		}
	}
	return Room{}, shared.ErrNotFound
}

func (r *memoryRepo) FindTaskRoom(ctx context.Context, taskID int64) (Room, error) {
	for _, room := range r.rooms {
		if room.Type == RoomTask && room.TaskID == taskID {
			return room, nil
		}
	}
	return Room{}, shared.ErrNotFound
}

func (r *memoryRepo) ListRoomsForUser(ctx context.Context, userID int64) ([]Room, error) {
	var out []Room
	for id := range r.members {
		if _, ok := r.members[id][userID]; ok {
			out = append(out, r.rooms[id])
		}
	}
	return out, nil
}

func (r *memoryRepo) AddMember(ctx context.Context, roomID, userID int64) error {
	if _, ok := r.rooms[roomID]; !ok {
		return shared.ErrNotFound
	}
	r.members[roomID][userID] = struct{}{}
	return nil
}

func (r *memoryRepo) RemoveMember(ctx context.Context, roomID, userID int64) error {
	delete(r.members[roomID], userID)
	return nil
}

func (r *memoryRepo) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	_, ok := r.members[roomID][userID]
	return ok, nil
}

func (r *memoryRepo) MemberIDs(ctx context.Context, roomID int64) ([]int64, error) {
	var out []int64
	for id := range r.members[roomID] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *memoryRepo) InsertMessage(ctx context.Context, msg Message) (Message, error) {
	msg.ID = r.nextMsgID
	r.nextMsgID++
	r.messages[msg.RoomID] = append(r.messages[msg.RoomID], msg)
	return msg, nil
}

func (r *memoryRepo) ListMessages(ctx context.Context, roomID int64, page, perPage int) ([]Message, int, error) {
	msgs := r.messages[roomID]
	return msgs, len(msgs), nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, slog.Default()), repo
}

func alice() *shared.Principal { return &shared.Principal{UserID: 1, DisplayName: "Alice"} }
func bob() *shared.Principal   { return &shared.Principal{UserID: 2, DisplayName: "Bob"} }

func TestOpenDirectRoomReusesExisting(t *testing.T) {
	svc, _ := newTestService()

	first, err := svc.OpenDirectRoom(context.Background(), alice(), 2)
	require.NoError(t, err)
	require.Equal(t, RoomDirect, first.Type)

	// The other participant opening the same pair gets the same room.
	second, err := svc.OpenDirectRoom(context.Background(), bob(), 1)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestOpenDirectRoomRejectsSelf(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.OpenDirectRoom(context.Background(), alice(), 1)
	require.ErrorIs(t, err, ErrInvalidRoom)

	_, err = svc.OpenDirectRoom(context.Background(), alice(), 0)
	require.ErrorIs(t, err, ErrInvalidRoom)
}

func TestCreateGroupRoomAddsActorOnce(t *testing.T) {
	svc, repo := newTestService()

	room, err := svc.CreateGroupRoom(context.Background(), alice(), "ops", []int64{1, 2, 3})
	require.NoError(t, err)

	ids, err := repo.MemberIDs(context.Background(), room.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, ids)
}

func TestCreateGroupRoomRequiresName(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateGroupRoom(context.Background(), alice(), "", []int64{2})
	require.ErrorIs(t, err, ErrInvalidRoom)
}

func TestEnsureTaskRoomIsIdempotent(t *testing.T) {
	svc, repo := newTestService()

	first, err := svc.EnsureTaskRoom(context.Background(), alice(), 42)
	require.NoError(t, err)
	require.Equal(t, RoomTask, first.Type)
	require.Equal(t, int64(42), first.TaskID)

	second, err := svc.EnsureTaskRoom(context.Background(), bob(), 42)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	ids, err := repo.MemberIDs(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ids)
}

func TestHistoryRequiresMembership(t *testing.T) {
	svc, _ := newTestService()
	room, err := svc.OpenDirectRoom(context.Background(), alice(), 2)
	require.NoError(t, err)

	outsider := &shared.Principal{UserID: 9}
	_, _, err = svc.History(context.Background(), outsider, room.ID, 1, 50)
	require.ErrorIs(t, err, ErrNotMember)

	_, _, err = svc.History(context.Background(), alice(), room.ID, 1, 50)
	require.NoError(t, err)
}

func TestArchiveMessagePersistsForMembers(t *testing.T) {
	svc, repo := newTestService()
	room, err := svc.OpenDirectRoom(context.Background(), alice(), 2)
	require.NoError(t, err)

	sent := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	err = svc.ArchiveMessage(context.Background(), realtime.ChatMessage{
		ID:         "3a41c9b0-6f2e-4d3a-9be1-2f6a0c1d5e77",
		RoomType:   string(RoomDirect),
		RoomID:     room.ID,
		SenderID:   1,
		SenderName: "Alice",
		Body:       "hello",
		SentAt:     sent,
	})
	require.NoError(t, err)

	msgs := repo.messages[room.ID]
	require.Len(t, msgs, 1)
	require.Equal(t, "3a41c9b0-6f2e-4d3a-9be1-2f6a0c1d5e77", msgs[0].MessageID)
	require.Equal(t, "hello", msgs[0].Body)
	require.Equal(t, sent, msgs[0].SentAt)
}

func TestArchiveMessageRejectsNonMember(t *testing.T) {
	svc, repo := newTestService()
	room, err := svc.OpenDirectRoom(context.Background(), alice(), 2)
	require.NoError(t, err)

	err = svc.ArchiveMessage(context.Background(), realtime.ChatMessage{
		ID:       "4b52da01-7c3f-4e4b-8cf2-3a7b1d2e6f88",
		RoomType: string(RoomDirect),
		RoomID:   room.ID,
		SenderID: 9,
		Body:     "sneaky",
	})
	require.ErrorIs(t, err, ErrNotMember)
	require.Empty(t, repo.messages[room.ID])
}

func TestLeaveRemovesMembership(t *testing.T) {
	svc, _ := newTestService()
	room, err := svc.CreateGroupRoom(context.Background(), alice(), "ops", []int64{2})
	require.NoError(t, err)

	require.NoError(t, svc.Leave(context.Background(), bob(), room.ID))

	_, _, err = svc.History(context.Background(), bob(), room.ID, 1, 50)
	require.ErrorIs(t, err, ErrNotMember)

	rooms, err := svc.ListRooms(context.Background(), bob())
	require.NoError(t, err)
	require.Empty(t, rooms)
}
