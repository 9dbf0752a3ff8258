package dispatcher

import "errors"

var (
	ErrNotJoined      = errors.New("dispatcher: no current room")
	ErrOwnerRequired  = errors.New("dispatcher: operation requires owner role")
	ErrUnknownMessage = errors.New("dispatcher: unrecognised message type")
	ErrInvalidVersion = errors.New("dispatcher: version must be non-negative")
	ErrMemberNotFound = errors.New("dispatcher: no member with that email in this room")
)
