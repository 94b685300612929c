package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/internal/rbac"
	"github.com/crewdeck/crewdeck/internal/roles"
	"github.com/crewdeck/crewdeck/internal/shared"
)

type fakeVerifier struct {
	principals map[string]*shared.Principal
}

func (v *fakeVerifier) ResolvePrincipal(ctx context.Context, token string) (*shared.Principal, error) {
	p, ok := v.principals[token]
	if !ok {
		return nil, shared.ErrTokenInvalid
	}
	return p, nil
}

type fakePermResolver struct {
	sets map[int64]rbac.PermissionSet
}

func (r *fakePermResolver) Snapshot(ctx context.Context, roleID int64) (rbac.PermissionSet, error) {
	return r.sets[roleID], nil
}

type fakeArchiver struct {
	archived []ChatMessage
	err      error
}

func (a *fakeArchiver) ArchiveMessage(ctx context.Context, msg ChatMessage) error {
	if a.err != nil {
		return a.err
	}
	a.archived = append(a.archived, msg)
	return nil
}

type fakeSink struct {
	recorded int
}

func (s *fakeSink) RecordChatMessage(ctx context.Context, roomType string, roomID, senderID int64, preview string) error {
	s.recorded++
	return nil
}

func newTestGateway(t *testing.T) (*Gateway, *fakeVerifier, *fakePermResolver, *fakeArchiver, *fakeSink) {
	t.Helper()
	verifier := &fakeVerifier{principals: map[string]*shared.Principal{
		"admin-token":    {UserID: 1, DisplayName: "Ada Admin", Role: roles.RoleAdmin, RoleID: 1},
		"manager-token":  {UserID: 2, DisplayName: "Mia Manager", Role: roles.RoleManager, RoleID: 2, DepartmentID: 4},
		"employee-token": {UserID: 3, DisplayName: "Eli Employee", Role: roles.RoleEmployee, RoleID: 3, DepartmentID: 4},
	}}
	perms := &fakePermResolver{sets: map[int64]rbac.PermissionSet{
		1: {{Module: "tasks", Action: rbac.ActionUpdate, Scope: rbac.ScopeAny}},
		2: {{Module: "tasks", Action: rbac.ActionUpdate, Scope: rbac.ScopeAny}},
		3: {{Module: "tasks", Action: rbac.ActionView, Scope: rbac.ScopeAssigned}},
	}}
	archiver := &fakeArchiver{}
	sink := &fakeSink{}
	gw := NewGateway(slog.Default(), NewHub(), NewSessionRegistry(), verifier, perms, archiver, sink)
	return gw, verifier, perms, archiver, sink
}

func connect(t *testing.T, gw *Gateway, id, token string) *fakeConn {
	t.Helper()
	conn := newFakeConn(id)
	require.NoError(t, gw.HandleConnect(context.Background(), conn, token))
	return conn
}

func TestConnectAdmitsAndAnnounces(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	conn := connect(t, gw, "c1", "employee-token")

	sess := gw.Sessions().Get("c1")
	require.NotNil(t, sess)
	require.Equal(t, int64(3), sess.UserID)
	require.Equal(t, roles.RoleEmployee, sess.Role)

	groups := gw.Hub().GroupsOf("c1")
	require.ElementsMatch(t, []string{GroupGlobal, GroupUser(3), GroupDepartment(4)}, groups)

	payloads := conn.payloads()
	require.Len(t, payloads, 1)
	ok, isAuth := payloads[0].(authOK)
	require.True(t, isAuth)
	require.Equal(t, EventAuthOK, ok.Type)
	require.Equal(t, "Eli Employee", ok.Name)
}

func TestConnectElevatedRolesJoinAdmins(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	connect(t, gw, "a1", "admin-token")
	connect(t, gw, "m1", "manager-token")
	connect(t, gw, "e1", "employee-token")

	require.Equal(t, 2, gw.Hub().MemberCount(GroupAdmins))
}

func TestConnectRejectsBadToken(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	conn := newFakeConn("c1")

	err := gw.HandleConnect(context.Background(), conn, "expired-token")
	require.ErrorIs(t, err, shared.ErrTokenInvalid)

	// The failure leaves nothing behind: no session, no memberships.
	require.Nil(t, gw.Sessions().Get("c1"))
	require.Empty(t, gw.Hub().GroupsOf("c1"))

	payloads := conn.payloads()
	require.Len(t, payloads, 1)
	fail, isErr := payloads[0].(authError)
	require.True(t, isErr)
	require.Equal(t, EventAuthError, fail.Type)
}

func TestEventIgnoredWithoutSession(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	conn := newFakeConn("ghost")

	gw.HandleEvent(context.Background(), conn, []byte(`{"type":"task:join","task_id":1}`))

	require.Empty(t, gw.Hub().GroupsOf("ghost"))
	require.Empty(t, conn.payloads())
}

func TestMalformedEventDoesNotKillConnection(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	conn := connect(t, gw, "c1", "employee-token")

	gw.HandleEvent(context.Background(), conn, []byte(`{not json`))
	gw.HandleEvent(context.Background(), conn, []byte(`{"type":""}`))
	gw.HandleEvent(context.Background(), conn, []byte(`{"type":"task:join"}`))

	require.NotNil(t, gw.Sessions().Get("c1"))
	// Still able to act afterwards.
	gw.HandleEvent(context.Background(), conn, []byte(`{"type":"task:join","task_id":7}`))
	require.Equal(t, 1, gw.Hub().MemberCount(GroupTask(7)))
}

func TestTaskUpdateRelayExcludesSender(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	sender := connect(t, gw, "m1", "manager-token")
	watcher := connect(t, gw, "e1", "employee-token")
	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"task:join","task_id":5}`))
	gw.HandleEvent(context.Background(), watcher, []byte(`{"type":"task:join","task_id":5}`))

	before := len(sender.payloads())
	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"task:updated","task_id":5,"status":"in_progress"}`))

	require.Len(t, sender.payloads(), before)
	payloads := watcher.payloads()
	ev, ok := payloads[len(payloads)-1].(taskEvent)
	require.True(t, ok)
	require.Equal(t, EventTaskUpdated, ev.Type)
	require.Equal(t, int64(2), ev.UserID)
	require.Equal(t, "Mia Manager", ev.UserName)
}

func TestTaskUpdateRequiresPermission(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	employee := connect(t, gw, "e1", "employee-token")
	watcher := connect(t, gw, "m1", "manager-token")
	gw.HandleEvent(context.Background(), employee, []byte(`{"type":"task:join","task_id":5}`))
	gw.HandleEvent(context.Background(), watcher, []byte(`{"type":"task:join","task_id":5}`))

	before := len(watcher.payloads())
	gw.HandleEvent(context.Background(), employee, []byte(`{"type":"task:updated","task_id":5,"status":"approved"}`))

	require.Len(t, watcher.payloads(), before)
}

func TestLocationUpdateOnlyFromEmployeesToAdmins(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	employee := connect(t, gw, "e1", "employee-token")
	manager := connect(t, gw, "m1", "manager-token")
	admin := connect(t, gw, "a1", "admin-token")

	adminBefore := len(admin.payloads())
	gw.HandleEvent(context.Background(), employee, []byte(`{"type":"location:update","lat":-6.2,"lng":106.8}`))

	adminPayloads := admin.payloads()
	require.Len(t, adminPayloads, adminBefore+1)
	ev, ok := adminPayloads[len(adminPayloads)-1].(locationEvent)
	require.True(t, ok)
	require.Equal(t, int64(3), ev.UserID)
	require.False(t, ev.At.IsZero())

	// A manager's ping is dropped, not relayed.
	managerBefore := len(admin.payloads())
	gw.HandleEvent(context.Background(), manager, []byte(`{"type":"location:update","lat":-6.2,"lng":106.8}`))
	require.Len(t, admin.payloads(), managerBefore)

	// The sender never gets its own ping back.
	require.Len(t, employee.payloads(), 1) // auth:ok only
}

func TestChatMessageStampedAndArchived(t *testing.T) {
	gw, _, _, archiver, sink := newTestGateway(t)
	fixed := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	gw.WithNow(func() time.Time { return fixed })

	sender := connect(t, gw, "e1", "employee-token")
	peer := connect(t, gw, "m1", "manager-token")
	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"chat:join","room_type":"direct","room_id":12}`))
	gw.HandleEvent(context.Background(), peer, []byte(`{"type":"chat:join","room_type":"direct","room_id":12}`))

	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"chat:message","room_type":"direct","room_id":12,"body":"on my way"}`))

	payloads := peer.payloads()
	msg, ok := payloads[len(payloads)-1].(ChatMessage)
	require.True(t, ok)
	require.NotEmpty(t, msg.ID)
	require.Equal(t, fixed, msg.SentAt)
	require.Equal(t, "Eli Employee", msg.SenderName)
	require.Equal(t, "on my way", msg.Body)

	// Chat relays include the sender, so their client renders the echo.
	senderPayloads := sender.payloads()
	echo, ok := senderPayloads[len(senderPayloads)-1].(ChatMessage)
	require.True(t, ok)
	require.Equal(t, msg.ID, echo.ID)

	require.Len(t, archiver.archived, 1)
	require.Equal(t, msg.ID, archiver.archived[0].ID)
	require.Equal(t, 1, sink.recorded)
}

func TestChatMessageIDsAreUnique(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	sender := connect(t, gw, "e1", "employee-token")
	peer := connect(t, gw, "m1", "manager-token")
	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"chat:join","room_type":"group","room_id":3}`))
	gw.HandleEvent(context.Background(), peer, []byte(`{"type":"chat:join","room_type":"group","room_id":3}`))

	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"chat:message","room_type":"group","room_id":3,"body":"first"}`))
	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"chat:message","room_type":"group","room_id":3,"body":"second"}`))

	payloads := peer.payloads()
	first := payloads[len(payloads)-2].(ChatMessage)
	second := payloads[len(payloads)-1].(ChatMessage)
	require.NotEqual(t, first.ID, second.ID)
}

func TestChatMessageSurvivesArchiveFailure(t *testing.T) {
	gw, _, _, archiver, _ := newTestGateway(t)
	archiver.err = context.DeadlineExceeded

	sender := connect(t, gw, "e1", "employee-token")
	peer := connect(t, gw, "m1", "manager-token")
	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"chat:join","room_type":"direct","room_id":8}`))
	gw.HandleEvent(context.Background(), peer, []byte(`{"type":"chat:join","room_type":"direct","room_id":8}`))

	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"chat:message","room_type":"direct","room_id":8,"body":"still here"}`))

	payloads := peer.payloads()
	msg, ok := payloads[len(payloads)-1].(ChatMessage)
	require.True(t, ok)
	require.Equal(t, "still here", msg.Body)
	require.NotNil(t, gw.Sessions().Get("e1"))
}

func TestTypingPassthrough(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	sender := connect(t, gw, "e1", "employee-token")
	peer := connect(t, gw, "m1", "manager-token")
	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"chat:join","room_type":"direct","room_id":2}`))
	gw.HandleEvent(context.Background(), peer, []byte(`{"type":"chat:join","room_type":"direct","room_id":2}`))

	senderBefore := len(sender.payloads())
	gw.HandleEvent(context.Background(), sender, []byte(`{"type":"typing:start","target":"chat","room_type":"direct","room_id":2}`))

	require.Len(t, sender.payloads(), senderBefore)
	payloads := peer.payloads()
	ev, ok := payloads[len(payloads)-1].(typingEvent)
	require.True(t, ok)
	require.Equal(t, EventTypingStart, ev.Type)
	require.Equal(t, "Eli Employee", ev.UserName)
}

func TestDisconnectLeavesNoTrace(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	conn := connect(t, gw, "e1", "employee-token")
	gw.HandleEvent(context.Background(), conn, []byte(`{"type":"task:join","task_id":1}`))
	gw.HandleEvent(context.Background(), conn, []byte(`{"type":"chat:join","room_type":"direct","room_id":1}`))
	require.NotEmpty(t, gw.Hub().GroupsOf("e1"))

	gw.HandleDisconnect(conn)

	require.Nil(t, gw.Sessions().Get("e1"))
	require.Empty(t, gw.Hub().GroupsOf("e1"))
	require.Zero(t, gw.Sessions().Len())

	// Events after disconnect are ignored.
	gw.HandleEvent(context.Background(), conn, []byte(`{"type":"task:join","task_id":2}`))
	require.Zero(t, gw.Hub().MemberCount(GroupTask(2)))
}

func TestStatusUpdateReachesAdmins(t *testing.T) {
	gw, _, _, _, _ := newTestGateway(t)
	employee := connect(t, gw, "e1", "employee-token")
	admin := connect(t, gw, "a1", "admin-token")

	before := len(admin.payloads())
	gw.HandleEvent(context.Background(), employee, []byte(`{"type":"status:update","status":"on_break"}`))

	payloads := admin.payloads()
	require.Len(t, payloads, before+1)
	ev, ok := payloads[len(payloads)-1].(statusEvent)
	require.True(t, ok)
	require.Equal(t, "on_break", ev.Status)
	require.Equal(t, int64(3), ev.UserID)
}

func TestEventTypePeek(t *testing.T) {
	kind, err := eventType([]byte(`{"type":"chat:message","body":"x"}`))
	require.NoError(t, err)
	require.Equal(t, EventChatMessage, kind)

	_, err = eventType([]byte(`null`))
	require.ErrorIs(t, err, ErrMalformedEvent)

	var raw json.RawMessage = []byte(`{"type":""}`)
	_, err = eventType(raw)
	require.ErrorIs(t, err, ErrMalformedEvent)
}
