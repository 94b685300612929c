package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Auth is token based; origin checks add nothing for non-cookie auth.
		return true
	},
}

const sendQueueSize = 32

// wsConn adapts a gorilla websocket connection to the hub's Conn contract.
// Writes go through a buffered queue drained by a single pump goroutine so
// Send never blocks a relay; a slow consumer has its payloads dropped.
type wsConn struct {
	id     string
	sock   *websocket.Conn
	logger *slog.Logger

	sendCh    chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newWSConn(sock *websocket.Conn, logger *slog.Logger) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		sock:   sock,
		logger: logger,
		sendCh: make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("marshal outbound event", slog.Any("error", err))
		return
	}
	select {
	case c.sendCh <- payload:
	case <-c.done:
	default:
		c.logger.Warn("dropping event for slow websocket subscriber", slog.String("conn", c.id))
	}
}

func (c *wsConn) writePump() {
	for {
		select {
		case payload := <-c.sendCh:
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// WSHandler upgrades HTTP requests into realtime connections and runs
// their read loop.
type WSHandler struct {
	gateway *Gateway
	logger  *slog.Logger
}

// NewWSHandler constructs the websocket endpoint.
func NewWSHandler(gateway *Gateway, logger *slog.Logger) *WSHandler {
	return &WSHandler{gateway: gateway, logger: logger}
}

// ServeHTTP implements GET /ws?token=<access token>.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", slog.Any("error", err))
		return
	}

	conn := newWSConn(sock, h.logger)
	go conn.writePump()

	if err := h.gateway.HandleConnect(r.Context(), conn, token); err != nil {
		// Authentication failures are fatal: the client must reconnect
		// with a fresh token.
		_ = sock.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"))
		conn.close()
		return
	}
	defer func() {
		h.gateway.HandleDisconnect(conn)
		conn.close()
	}()

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			return
		}
		h.gateway.HandleEvent(r.Context(), conn, raw)
	}
}
