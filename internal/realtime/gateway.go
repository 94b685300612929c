package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crewdeck/crewdeck/internal/rbac"
	"github.com/crewdeck/crewdeck/internal/roles"
	"github.com/crewdeck/crewdeck/internal/shared"
)

// TokenVerifier resolves a credential token to a principal. Implemented by
// auth.Service.
type TokenVerifier interface {
	ResolvePrincipal(ctx context.Context, token string) (*shared.Principal, error)
}

// PermissionResolver loads a role's permission snapshot. Implemented by
// rbac.Service.
type PermissionResolver interface {
	Snapshot(ctx context.Context, roleID int64) (rbac.PermissionSet, error)
}

// ChatArchiver persists relayed chat messages. Implemented by chat.Service.
type ChatArchiver interface {
	ArchiveMessage(ctx context.Context, msg ChatMessage) error
}

// NotificationSink records durable notifications for relayed events.
// Implemented by notifications.Service.
type NotificationSink interface {
	RecordChatMessage(ctx context.Context, roomType string, roomID, senderID int64, preview string) error
}

// Gateway is the realtime event dispatcher. Each connection moves through
// Connecting -> Authenticated -> Active -> Disconnected; HandleConnect
// covers the first two transitions, HandleEvent runs the Active self-loop,
// and HandleDisconnect is terminal. Errors inside a single Active event are
// contained at that event's boundary: they are logged and the connection
// stays up. Only an authentication failure is fatal.
type Gateway struct {
	logger   *slog.Logger
	hub      *Hub
	sessions *SessionRegistry
	verifier TokenVerifier
	perms    PermissionResolver
	chat     ChatArchiver
	notify   NotificationSink
	now      func() time.Time
}

// NewGateway constructs a Gateway. chat and notify may be nil; the relays
// then skip persistence.
func NewGateway(logger *slog.Logger, hub *Hub, sessions *SessionRegistry, verifier TokenVerifier, perms PermissionResolver, chat ChatArchiver, notify NotificationSink) *Gateway {
	return &Gateway{
		logger:   logger,
		hub:      hub,
		sessions: sessions,
		verifier: verifier,
		perms:    perms,
		chat:     chat,
		notify:   notify,
		now:      time.Now,
	}
}

// WithNow overrides the gateway clock for testing.
func (g *Gateway) WithNow(fn func() time.Time) {
	if fn != nil {
		g.now = fn
	}
}

// Hub exposes the broadcast hub, mainly so HTTP handlers can push
// server-initiated events (task assignments, notifications).
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Sessions exposes the live session registry.
func (g *Gateway) Sessions() *SessionRegistry {
	return g.sessions
}

// HandleConnect authenticates a fresh connection. On success the session
// is registered and the connection is admitted to its personal group, its
// department group, and, for elevated roles, the admins group. On failure
// the client is told why and the returned error instructs the transport to
// drop the connection; no group membership is created.
func (g *Gateway) HandleConnect(ctx context.Context, c Conn, token string) error {
	principal, err := g.verifier.ResolvePrincipal(ctx, token)
	if err != nil {
		c.Send(authError{Type: EventAuthError, Error: "authentication failed"})
		return shared.ErrTokenInvalid
	}

	set, err := g.perms.Snapshot(ctx, principal.RoleID)
	if err != nil {
		// Fail closed on the snapshot, not on the connection.
		g.logger.Warn("permission snapshot unavailable", slog.Int64("user", principal.UserID), slog.Any("error", err))
		set = rbac.PermissionSet{}
	}

	g.sessions.Put(&Session{
		ConnID:       c.ID(),
		UserID:       principal.UserID,
		DisplayName:  principal.DisplayName,
		Role:         principal.Role,
		DepartmentID: principal.DepartmentID,
		Perms:        set,
		ConnectedAt:  g.now().UTC(),
	})

	g.hub.Join(GroupGlobal, c)
	g.hub.Join(GroupUser(principal.UserID), c)
	if principal.DepartmentID != 0 {
		g.hub.Join(GroupDepartment(principal.DepartmentID), c)
	}
	if principal.Role == roles.RoleAdmin || principal.Role == roles.RoleManager {
		g.hub.Join(GroupAdmins, c)
	}

	c.Send(authOK{Type: EventAuthOK, UserID: principal.UserID, Name: principal.DisplayName, Role: principal.Role})
	return nil
}

// HandleEvent dispatches one Active-state event. A connection without a
// session (never authenticated) is ignored. Malformed payloads are dropped
// silently from the sender's perspective.
func (g *Gateway) HandleEvent(ctx context.Context, c Conn, raw []byte) {
	sess := g.sessions.Get(c.ID())
	if sess == nil {
		return
	}
	kind, err := eventType(raw)
	if err != nil {
		g.logger.Debug("drop malformed event", slog.String("conn", c.ID()))
		return
	}
	if err := g.dispatch(ctx, c, sess, kind, raw); err != nil {
		g.logger.Warn("event handling failed",
			slog.String("event", kind),
			slog.Int64("user", sess.UserID),
			slog.Any("error", err),
		)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c Conn, sess *Session, kind string, raw []byte) error {
	switch kind {
	case EventTaskJoin, EventTaskLeave:
		var ev taskEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.TaskID == 0 {
			return ErrMalformedEvent
		}
		if kind == EventTaskJoin {
			g.hub.Join(GroupTask(ev.TaskID), c)
		} else {
			g.hub.Leave(GroupTask(ev.TaskID), c.ID())
		}
		return nil

	case EventTaskUpdated:
		var ev taskEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.TaskID == 0 {
			return ErrMalformedEvent
		}
		// Consult the cached snapshot; a connection whose role cannot
		// touch tasks does not get to announce task changes.
		if _, ok := sess.Perms.Grant("tasks", rbac.ActionUpdate); !ok {
			return nil
		}
		ev.Type = EventTaskUpdated
		ev.UserID = sess.UserID
		ev.UserName = sess.DisplayName
		g.hub.Relay(GroupTask(ev.TaskID), ev, c.ID())
		return nil

	case EventTypingStart, EventTypingStop:
		var ev typingEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return ErrMalformedEvent
		}
		ev.Type = kind
		ev.UserID = sess.UserID
		ev.UserName = sess.DisplayName
		switch ev.Target {
		case TargetTask:
			if ev.TaskID == 0 {
				return ErrMalformedEvent
			}
			g.hub.Relay(GroupTask(ev.TaskID), ev, c.ID())
		case TargetChat:
			if ev.RoomType == "" || ev.RoomID == 0 {
				return ErrMalformedEvent
			}
			g.hub.Relay(GroupChat(ev.RoomType, ev.RoomID), ev, c.ID())
		default:
			return ErrMalformedEvent
		}
		return nil

	case EventLocationUpdate:
		var ev locationEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return ErrMalformedEvent
		}
		// Only the employee role forwards location pings, and only the
		// admins group sees them. Anything else is dropped, not an error.
		if sess.Role != roles.RoleEmployee {
			return nil
		}
		ev.Type = EventLocationUpdate
		ev.UserID = sess.UserID
		ev.UserName = sess.DisplayName
		ev.At = g.now().UTC()
		g.hub.Relay(GroupAdmins, ev, c.ID())
		return nil

	case EventStatusUpdate:
		var ev statusEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Status == "" {
			return ErrMalformedEvent
		}
		ev.Type = EventStatusUpdate
		ev.UserID = sess.UserID
		ev.UserName = sess.DisplayName
		g.hub.Relay(GroupAdmins, ev, c.ID())
		return nil

	case EventChatJoin, EventChatLeave:
		var ev chatRoomEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.RoomType == "" || ev.RoomID == 0 {
			return ErrMalformedEvent
		}
		if kind == EventChatJoin {
			g.hub.Join(GroupChat(ev.RoomType, ev.RoomID), c)
		} else {
			g.hub.Leave(GroupChat(ev.RoomType, ev.RoomID), c.ID())
		}
		return nil

	case EventChatMessage:
		var in chatMessageIn
		if err := json.Unmarshal(raw, &in); err != nil || in.RoomType == "" || in.RoomID == 0 || in.Body == "" {
			return ErrMalformedEvent
		}
		msg := ChatMessage{
			Type:       EventChatMessage,
			ID:         uuid.NewString(),
			RoomType:   in.RoomType,
			RoomID:     in.RoomID,
			SenderID:   sess.UserID,
			SenderName: sess.DisplayName,
			Body:       in.Body,
			SentAt:     g.now().UTC(),
		}
		// Durability is best-effort: a failed archive or notification is
		// logged and the message still reaches the room.
		if g.chat != nil {
			if err := g.chat.ArchiveMessage(ctx, msg); err != nil {
				g.logger.Warn("archive chat message", slog.String("id", msg.ID), slog.Any("error", err))
			}
		}
		if g.notify != nil {
			if err := g.notify.RecordChatMessage(ctx, msg.RoomType, msg.RoomID, msg.SenderID, msg.Body); err != nil {
				g.logger.Warn("record chat notification", slog.String("id", msg.ID), slog.Any("error", err))
			}
		}
		g.hub.Relay(GroupChat(msg.RoomType, msg.RoomID), msg, "")
		return nil

	default:
		g.logger.Debug("ignore unknown event", slog.String("event", kind))
		return nil
	}
}

// HandleDisconnect releases every group membership and destroys the
// session. Safe to call for connections that never authenticated.
func (g *Gateway) HandleDisconnect(c Conn) {
	g.hub.Drop(c.ID())
	g.sessions.Delete(c.ID())
}
