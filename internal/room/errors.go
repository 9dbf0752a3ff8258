package room

import "errors"

var (
	// ErrRoomDestroyed is returned by operations on a Room whose last
	// member has already left. The Dispatcher detects this by reference
	// and drops the stale currentRoom rather than treating it as fatal.
	ErrRoomDestroyed = errors.New("room: destroyed")

	// ErrChatNotFound is returned when an operation names a chat local
	// name that has no open Chat in this Room.
	ErrChatNotFound = errors.New("room: chat not found")
)
