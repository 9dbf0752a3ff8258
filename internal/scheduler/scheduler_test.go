package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"switchboard/pkg/interfaces"
	"switchboard/pkg/types"
)

type fakeEventStore struct {
	due    []*types.ScheduledEvent
	done   map[string]bool
	insert []*types.ScheduledEvent
}

func newFakeEventStore(due ...*types.ScheduledEvent) *fakeEventStore {
	return &fakeEventStore{due: due, done: make(map[string]bool)}
}
func (f *fakeEventStore) QueryDueEvents(ctx context.Context, now time.Time) ([]*types.ScheduledEvent, error) {
	return f.due, nil
}
func (f *fakeEventStore) MarkDone(ctx context.Context, id string) error {
	f.done[id] = true
	return nil
}
func (f *fakeEventStore) Insert(ctx context.Context, ev *types.ScheduledEvent) error {
	f.insert = append(f.insert, ev)
	return nil
}

type fakeLessonStore struct {
	lesson *interfaces.Lesson
}

func (f *fakeLessonStore) FindLesson(ctx context.Context, ns, lesson string) (*interfaces.Lesson, error) {
	return f.lesson, nil
}
func (f *fakeLessonStore) SetLessonActive(ctx context.Context, id string, active bool) error {
	f.lesson.Active = active
	return nil
}
func (f *fakeLessonStore) ClearLockUntil(ctx context.Context, id string) error {
	f.lesson.LockUntil = nil
	return nil
}

type fakeMailer struct {
	sent []interfaces.Mail
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, mail interfaces.Mail) error {
	f.sent = append(f.sent, mail)
	return f.err
}

type fakeStats struct {
	calls int
	err   error
}

func (f *fakeStats) ComputeAndPersist(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestScheduler_UnlockLesson(t *testing.T) {
	lockUntil := time.Now()
	lesson := &interfaces.Lesson{ID: "l1", Active: false, LockUntil: &lockUntil}
	lessons := &fakeLessonStore{lesson: lesson}
	ev := &types.ScheduledEvent{
		ID:   "e1",
		Type: types.EventTypeUnlockLesson,
		Data: map[string]interface{}{"namespaceName": "N", "lessonName": "L"},
	}
	store := newFakeEventStore(ev)
	s := New(store, lessons, &fakeMailer{}, &fakeStats{}, func() time.Time { return time.Unix(1000, 0) })

	s.Tick(context.Background())

	if !lesson.Active {
		t.Error("expected lesson to become active")
	}
	if lesson.LockUntil != nil {
		t.Error("expected lockUntil to be cleared")
	}
	if !store.done["e1"] {
		t.Error("expected event to be marked done")
	}

	// A second tick with no due events makes no further state change.
	store.due = nil
	s.Tick(context.Background())
	if !lesson.Active {
		t.Error("lesson must remain active after a second, empty tick")
	}
}

func TestScheduler_SendEmail_MarksDoneEvenOnFailure(t *testing.T) {
	ev := &types.ScheduledEvent{ID: "e2", Type: types.EventTypeSendEmail, Data: map[string]interface{}{"to": "a@b.com"}}
	store := newFakeEventStore(ev)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	s := New(store, &fakeLessonStore{lesson: &interfaces.Lesson{}}, mailer, &fakeStats{}, nil)

	s.Tick(context.Background())

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one send attempt, got %d", len(mailer.sent))
	}
	if !store.done["e2"] {
		t.Error("expected event marked done even though mail delivery failed; scheduler does not retry")
	}
}

func TestScheduler_OverviewStatistics_EnqueuesFollowUp(t *testing.T) {
	ev := &types.ScheduledEvent{ID: "e3", Type: types.EventTypeOverviewStatistics, User: "admin"}
	store := newFakeEventStore(ev)
	stats := &fakeStats{}
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	s := New(store, &fakeLessonStore{lesson: &interfaces.Lesson{}}, &fakeMailer{}, stats, func() time.Time { return now })

	s.Tick(context.Background())

	if stats.calls != 1 {
		t.Fatalf("expected ComputeAndPersist called once, got %d", stats.calls)
	}
	if len(store.insert) != 1 {
		t.Fatalf("expected one follow-up event enqueued, got %d", len(store.insert))
	}
	want := time.Date(2026, 1, 16, 0, 1, 0, 0, time.UTC)
	if !store.insert[0].Time.Equal(want) {
		t.Errorf("follow-up time = %v, want %v", store.insert[0].Time, want)
	}
	if store.insert[0].User != "admin" {
		t.Errorf("expected follow-up to preserve the issuing user, got %q", store.insert[0].User)
	}
}
