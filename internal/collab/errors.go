package collab

import "errors"

var (
	ErrInvalidVersion  = errors.New("collab: base version out of range")
	ErrStepRejected    = errors.New("collab: step batch rejected, client must resync")
	ErrInstanceEvicted = errors.New("collab: instance no longer live")
)
