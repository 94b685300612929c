package realtime

import (
	"sync"
)

// Conn is the transport-side handle the hub fans events out to. Send must
// not block: transports queue writes and shed load themselves.
type Conn interface {
	ID() string
	Send(v any)
}

// Hub owns broadcast group membership: a concurrency-safe mapping from
// group key to member connections. Joins and leaves are idempotent, and a
// dropped connection releases every membership atomically so no group
// retains a dangling entry.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[string]Conn
	joined map[string]map[string]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		groups: make(map[string]map[string]Conn),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the named group. Joining twice is a no-op.
func (h *Hub) Join(group string, c Conn) {
	if group == "" || c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.groups[group]
	if members == nil {
		members = make(map[string]Conn)
		h.groups[group] = members
	}
	members[c.ID()] = c
	keys := h.joined[c.ID()]
	if keys == nil {
		keys = make(map[string]struct{})
		h.joined[c.ID()] = keys
	}
	keys[group] = struct{}{}
}

// Leave removes the connection from the named group; a non-member leave
// is a no-op.
func (h *Hub) Leave(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(group, connID)
}

func (h *Hub) leaveLocked(group, connID string) {
	if members, ok := h.groups[group]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if keys, ok := h.joined[connID]; ok {
		delete(keys, group)
		if len(keys) == 0 {
			delete(h.joined, connID)
		}
	}
}

// Drop releases every group membership held by the connection in one
// critical section.
func (h *Hub) Drop(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for group := range h.joined[connID] {
		if members, ok := h.groups[group]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.groups, group)
			}
		}
	}
	delete(h.joined, connID)
}

// Relay delivers the payload to every member of the group. When exclude is
// non-empty that connection is skipped, which implements sender
// self-exclusion for echo-sensitive events. Delivery is best-effort:
// members joining concurrently may or may not observe the payload.
func (h *Hub) Relay(group string, payload any, exclude string) {
	h.mu.RLock()
	members := h.groups[group]
	targets := make([]Conn, 0, len(members))
	for id, c := range members {
		if id == exclude {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Send(payload)
	}
}

// MemberCount reports the current size of a group.
func (h *Hub) MemberCount(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// GroupsOf returns the group keys a connection currently belongs to.
func (h *Hub) GroupsOf(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.joined[connID]))
	for group := range h.joined[connID] {
		keys = append(keys, group)
	}
	return keys
}
