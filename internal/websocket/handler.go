package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"switchboard/internal/dispatcher"
	"switchboard/internal/logging"
	"switchboard/internal/router"
	"switchboard/pkg/interfaces"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades incoming HTTP requests to WebSocket connections,
// resolves the caller's identity and hands every inbound message to the
// Dispatcher for the lifetime of the socket.
type Handler struct {
	auth       interfaces.Auth
	dispatcher *dispatcher.Dispatcher
	registry   *Registry
	limiter    *router.RateLimiter

	pingInterval time.Duration
	readTimeout  time.Duration
}

// NewHandler constructs a Handler. pingInterval/readTimeout come from the
// process WebSocket configuration.
func NewHandler(auth interfaces.Auth, d *dispatcher.Dispatcher, registry *Registry, pingInterval, readTimeout time.Duration) *Handler {
	return &Handler{
		auth:         auth,
		dispatcher:   d,
		registry:     registry,
		limiter:      router.NewRateLimiter(),
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

// HandleWebSocket authenticates the caller via the "token" query parameter,
// upgrades the connection, and serves it until the socket closes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	user, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	wsConn := NewConnection(conn)
	if err := wsConn.SetCredentials(user.Email, user.DisplayName, ""); err != nil {
		_ = wsConn.Close()
		return
	}

	h.registry.Add(wsConn)
	go h.serve(wsConn)
}

// serve runs one connection's read loop: a heartbeat ping/pong pair keeps
// idle sockets alive, and every text frame is handed to the Dispatcher in
// order on this same goroutine, matching the single-lock-per-Room model's
// assumption that one connection's messages are processed serially.
func (h *Handler) serve(conn *Connection) {
	session := dispatcher.NewSession(conn)
	defer func() {
		h.dispatcher.Disconnect(session)
		h.registry.Remove(conn)
		_ = conn.Close()
	}()

	conn.conn.SetReadLimit(65536)
	_ = conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	stopPing := make(chan struct{})
	go h.pingLoop(conn, stopPing)
	defer close(stopPing)

	for {
		_, raw, err := conn.conn.ReadMessage()
		if err != nil {
			return
		}

		key := conn.GetUserEmail()
		if key == "" {
			key = conn.RemoteAddr()
		}
		if !h.limiter.Allow(key) {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.dispatcher.Handle(ctx, session, raw); err != nil {
			logging.L().Debug("dispatcher handle failed", logging.Email(conn.GetUserEmail()), zap.Error(err))
		}
		cancel()
		conn.SetRoomName(session.RoomName())
	}
}

func (h *Handler) pingLoop(conn *Connection, stop <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
