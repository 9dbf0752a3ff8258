package interfaces

// Connection is the transport-level abstraction the Dispatcher drives.
// Pure abstraction without implementation details keeps Room/Dispatcher
// logic unit-testable without a real socket.
type Connection interface {
	// WriteJSON sends a JSON message to the client. Implementations must
	// be safe for concurrent use from multiple goroutines via a
	// single-writer pattern internally.
	WriteJSON(v interface{}) error

	// Close closes the connection and cleans up resources.
	Close() error

	// GetUserEmail returns the connected user's stable identity.
	GetUserEmail() string

	// GetRole returns the user's role within the current room.
	GetRole() string

	// GetRoomName returns the room this connection currently occupies, or
	// empty if it has not joined one yet.
	GetRoomName() string

	// IsAuthenticated returns true once SetCredentials has succeeded.
	IsAuthenticated() bool

	// SetCredentials sets user credentials after authentication.
	SetCredentials(email, displayName, role string) error
}
