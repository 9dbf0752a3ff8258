package interfaces

import (
	"context"
	"time"
)

// Lesson is the row shape the core reads/writes in the lesson table — one
// of the three persisted tables the core owns directly.
type Lesson struct {
	ID            string
	NamespaceID   string
	NamespaceName string
	LessonName    string
	Active        bool
	LockUntil     *time.Time
}

// LessonStore is the "Lesson store" collaborator named in the external
// interfaces contract: find_lesson, set_lesson_active, clear_lock_until.
type LessonStore interface {
	FindLesson(ctx context.Context, namespaceTitle, lessonTitle string) (*Lesson, error)
	SetLessonActive(ctx context.Context, lessonID string, active bool) error
	ClearLockUntil(ctx context.Context, lessonID string) error
}

// NamespaceStore is the "Namespace store" collaborator: is_owner.
type NamespaceStore interface {
	IsOwner(ctx context.Context, userID, namespaceTitle string) (bool, error)
}
