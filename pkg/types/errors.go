package types

import "errors"

var (
	ErrInvalidEmail      = errors.New("email must be a valid address")
	ErrInvalidDisplay    = errors.New("display name must be 1-100 characters")
	ErrInvalidRoomName   = errors.New("room name must be of the form namespace/lesson")
	ErrInvalidChatName   = errors.New("chat name must be of the form room:localName")
	ErrInvalidDocumentID = errors.New("document id must be of the form namespace-lesson-component")
	ErrInvalidMessageType = errors.New("invalid wire message type")
	ErrContentTooLarge    = errors.New("message content exceeds 64KB limit")
)
