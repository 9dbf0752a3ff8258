package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection implements pkg/interfaces.Connection over a gorilla/websocket
// socket. Writes are serialized through a single writer goroutine so
// concurrent callers (Room broadcasts, Dispatcher replies) never race on
// the underlying socket.
type Connection struct {
	conn       *websocket.Conn
	remoteAddr string
	writeCh    chan []byte // 100-message buffer absorbs classroom-scale broadcast bursts

	email         string
	displayName   string
	role          string
	roomName      string
	authenticated bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewConnection wraps an already-upgraded socket and starts its writer.
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		writeCh:    make(chan []byte, 100),
		ctx:        ctx,
		cancel:     cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	defer func() {
		for len(c.writeCh) > 0 {
			<-c.writeCh
		}
		close(c.writeCh)
	}()

	for {
		select {
		case data, ok := <-c.writeCh:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON marshals v and hands it to the writer goroutine, timing out
// after 5 seconds if the socket is backed up.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// SetCredentials records the identity resolved for this socket. The
// Handler calls it once at authentication time (email, displayName, no
// role yet); the Dispatcher calls it again once join resolves the room
// role, passing the email as the display name.
func (c *Connection) SetCredentials(email, displayName, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.email = email
	c.displayName = displayName
	c.role = role
	c.authenticated = true
	return nil
}

// SetRoomName records the room this socket has joined. Not part of
// interfaces.Connection — called directly by the websocket handler once
// the Dispatcher reports a successful join.
func (c *Connection) SetRoomName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomName = name
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) GetUserEmail() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.email
}

func (c *Connection) GetDisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayName
}

func (c *Connection) GetRole() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

func (c *Connection) GetRoomName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomName
}

// RemoteAddr is the socket's peer address, used as the rate-limiter key
// before a connection has authenticated.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }
