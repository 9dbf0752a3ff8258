package dispatcher

import (
	"switchboard/internal/room"
	"switchboard/pkg/interfaces"
)

// Session is the mutable per-connection state: a connection holds its
// current Room and Member across the lifetime of one socket.
type Session struct {
	conn        interfaces.Connection
	currentRoom *room.Room
	member      *room.Member
}

// NewSession wraps a freshly-accepted connection; it joins no room until
// the first "join" message arrives.
func NewSession(conn interfaces.Connection) *Session {
	return &Session{conn: conn}
}

// RoomName reports the name of the Session's current Room, or "" if it
// has not joined one (or the last one it joined has since been destroyed).
func (s *Session) RoomName() string {
	if s.currentRoom == nil || s.currentRoom.Destroyed() {
		return ""
	}
	return s.currentRoom.Name()
}
