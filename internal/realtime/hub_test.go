package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string

	mu   sync.Mutex
	sent []any
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(v any) {
	c.mu.Lock()
	c.sent = append(c.sent, v)
	c.mu.Unlock()
}

func (c *fakeConn) payloads() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.sent...)
}

func TestHubJoinIsIdempotent(t *testing.T) {
	hub := NewHub()
	conn := newFakeConn("c1")

	hub.Join("task:1", conn)
	hub.Join("task:1", conn)
	require.Equal(t, 1, hub.MemberCount("task:1"))

	hub.Relay("task:1", "ping", "")
	require.Len(t, conn.payloads(), 1)
}

func TestHubLeaveNonMemberIsNoop(t *testing.T) {
	hub := NewHub()
	conn := newFakeConn("c1")
	hub.Join("task:1", conn)

	hub.Leave("task:1", "unknown")
	hub.Leave("task:2", conn.ID())
	require.Equal(t, 1, hub.MemberCount("task:1"))

	hub.Leave("task:1", conn.ID())
	require.Zero(t, hub.MemberCount("task:1"))
}

func TestHubRelayExcludesSender(t *testing.T) {
	hub := NewHub()
	sender := newFakeConn("sender")
	other := newFakeConn("other")
	hub.Join("chat:group:9", sender)
	hub.Join("chat:group:9", other)

	hub.Relay("chat:group:9", "hello", sender.ID())

	require.Empty(t, sender.payloads())
	require.Len(t, other.payloads(), 1)
	require.Equal(t, "hello", other.payloads()[0])
}

func TestHubDropReleasesAllMemberships(t *testing.T) {
	hub := NewHub()
	conn := newFakeConn("c1")
	peer := newFakeConn("c2")
	for _, group := range []string{GroupGlobal, GroupAdmins, "task:4", "chat:direct:2"} {
		hub.Join(group, conn)
		hub.Join(group, peer)
	}
	require.Len(t, hub.GroupsOf(conn.ID()), 4)

	hub.Drop(conn.ID())

	require.Empty(t, hub.GroupsOf(conn.ID()))
	for _, group := range []string{GroupGlobal, GroupAdmins, "task:4", "chat:direct:2"} {
		require.Equal(t, 1, hub.MemberCount(group))
	}

	// No dangling entry: relays reach only the survivor.
	hub.Relay(GroupGlobal, "after", "")
	require.Empty(t, conn.payloads())
	require.Len(t, peer.payloads(), 1)
}

func TestHubRelayEmptyGroup(t *testing.T) {
	hub := NewHub()
	hub.Relay("task:404", "noop", "")
	require.Zero(t, hub.MemberCount("task:404"))
}
