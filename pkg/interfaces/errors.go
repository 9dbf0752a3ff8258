package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrLessonNotFound   = errors.New("lesson not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrDocumentNotFound = errors.New("document not found")
)
