package realtime

import (
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/internal/rbac"
)

// Session is the per-connection identity record, created when a connection
// authenticates and destroyed on disconnect. It caches the principal's
// attributes and permission snapshot so event handling never re-fetches.
type Session struct {
	ConnID       string
	UserID       int64
	DisplayName  string
	Role         string
	DepartmentID int64
	Perms        rbac.PermissionSet
	ConnectedAt  time.Time
}

// SessionRegistry maps connection ids to live sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Put stores the session under its connection id.
func (r *SessionRegistry) Put(s *Session) {
	if s == nil || s.ConnID == "" {
		return
	}
	r.mu.Lock()
	r.sessions[s.ConnID] = s
	r.mu.Unlock()
}

// Get returns the session for a connection id, nil when absent.
func (r *SessionRegistry) Get(connID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[connID]
}

// Delete removes the session for a connection id.
func (r *SessionRegistry) Delete(connID string) {
	r.mu.Lock()
	delete(r.sessions, connID)
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
