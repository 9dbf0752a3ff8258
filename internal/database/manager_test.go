package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"switchboard/pkg/interfaces"
	"switchboard/pkg/types"
	dbconfig "switchboard/pkg/database"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &dbconfig.Config{
		DatabasePath:    filepath.Join(t.TempDir(), "test.db"),
		MaxConnections:  5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute,
		MigrationsPath:  "", // migrations applied manually below
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	migrationsPath, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("resolve migrations path: %v", err)
	}
	mm := dbconfig.NewMigrationManager(m.GetDB(), migrationsPath)
	if err := mm.ApplyMigrations(); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return m
}

func seedNamespaceAndLesson(t *testing.T, m *Manager) (namespaceID, lessonID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := m.db.ExecContext(ctx, `INSERT INTO namespaces (id, name) VALUES ('ns1', 'ns')`); err != nil {
		t.Fatalf("seed namespace: %v", err)
	}
	if _, err := m.db.ExecContext(ctx, `INSERT INTO namespace_owners (namespace_id, user_id) VALUES ('ns1', 'owner@example.com')`); err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if _, err := m.db.ExecContext(ctx, `
		INSERT INTO lessons (id, namespace_id, namespace_name, lesson_name, active)
		VALUES ('lesson1', 'ns1', 'ns', 'l1', 0)`); err != nil {
		t.Fatalf("seed lesson: %v", err)
	}
	return "ns1", "lesson1"
}

func TestManager_FindLesson(t *testing.T) {
	m := newTestManager(t)
	seedNamespaceAndLesson(t, m)

	lesson, err := m.FindLesson(context.Background(), "ns", "l1")
	if err != nil {
		t.Fatalf("find lesson: %v", err)
	}
	if lesson == nil || lesson.ID != "lesson1" {
		t.Fatalf("expected lesson1, got %+v", lesson)
	}

	missing, err := m.FindLesson(context.Background(), "ns", "nope")
	if err != nil {
		t.Fatalf("find missing lesson: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing lesson, got %+v", missing)
	}
}

func TestManager_SetLessonActiveAndClearLockUntil(t *testing.T) {
	m := newTestManager(t)
	seedNamespaceAndLesson(t, m)
	ctx := context.Background()

	if _, err := m.db.ExecContext(ctx, `UPDATE lessons SET lock_until = CURRENT_TIMESTAMP WHERE id = 'lesson1'`); err != nil {
		t.Fatalf("seed lock_until: %v", err)
	}

	if err := m.SetLessonActive(ctx, "lesson1", true); err != nil {
		t.Fatalf("set lesson active: %v", err)
	}
	if err := m.ClearLockUntil(ctx, "lesson1"); err != nil {
		t.Fatalf("clear lock until: %v", err)
	}

	lesson, err := m.FindLesson(ctx, "ns", "l1")
	if err != nil {
		t.Fatalf("find lesson: %v", err)
	}
	if !lesson.Active {
		t.Error("expected lesson to be active")
	}
	if lesson.LockUntil != nil {
		t.Error("expected lock_until to be cleared")
	}
}

func TestManager_IsOwner(t *testing.T) {
	m := newTestManager(t)
	seedNamespaceAndLesson(t, m)
	ctx := context.Background()

	isOwner, err := m.IsOwner(ctx, "owner@example.com", "ns")
	if err != nil {
		t.Fatalf("is owner: %v", err)
	}
	if !isOwner {
		t.Error("expected owner@example.com to be an owner of ns")
	}

	isOwner, err = m.IsOwner(ctx, "student@example.com", "ns")
	if err != nil {
		t.Fatalf("is owner: %v", err)
	}
	if isOwner {
		t.Error("expected student@example.com not to be an owner")
	}
}

func TestManager_EventStore_InsertQueryMarkDone(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	due := &types.ScheduledEvent{
		Type: types.EventTypeUnlockLesson,
		Time: time.Now().Add(-time.Minute),
		Data: map[string]interface{}{"namespaceName": "ns", "lessonName": "l1"},
		User: "owner@example.com",
	}
	if err := m.Insert(ctx, due); err != nil {
		t.Fatalf("insert due event: %v", err)
	}
	future := &types.ScheduledEvent{
		Type: types.EventTypeSendEmail,
		Time: time.Now().Add(time.Hour),
		Data: map[string]interface{}{"to": "student@example.com"},
	}
	if err := m.Insert(ctx, future); err != nil {
		t.Fatalf("insert future event: %v", err)
	}

	events, err := m.QueryDueEvents(ctx, time.Now())
	if err != nil {
		t.Fatalf("query due events: %v", err)
	}
	if len(events) != 1 || events[0].ID != due.ID {
		t.Fatalf("expected exactly the due event, got %+v", events)
	}
	if events[0].Data["namespaceName"] != "ns" {
		t.Errorf("expected data to round-trip, got %+v", events[0].Data)
	}

	if err := m.MarkDone(ctx, due.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	events, err = m.QueryDueEvents(ctx, time.Now())
	if err != nil {
		t.Fatalf("query due events after mark done: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no due events after mark done, got %+v", events)
	}
}

func TestManager_DocumentStore_LoadMissingThenSaveThenLoad(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	snap, err := m.Load(ctx, "ns1", "lesson1", "doc1")
	if err != nil {
		t.Fatalf("load missing document: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot for unseen document, got %+v", snap)
	}

	toSave := &types.DocumentSnapshot{
		Version: 3,
		Doc:     "hello world",
		Comments: []types.Comment{{ID: "c1", From: 0, To: 5, Text: "note"}},
		CompressedSteps: []types.CompressedStep{{ClientID: "client-a", Payload: []byte("step")}},
		Users: map[string]string{"student@example.com": "persistent-1"},
	}
	documentID := types.DocumentID("ns1", "lesson1", "doc1")
	if err := m.Save(ctx, documentID, toSave); err != nil {
		t.Fatalf("save document: %v", err)
	}

	loaded, err := m.Load(ctx, "ns1", "lesson1", "doc1")
	if err != nil {
		t.Fatalf("load saved document: %v", err)
	}
	if loaded == nil || loaded.Version != 3 || loaded.Doc != "hello world" {
		t.Fatalf("loaded snapshot mismatch: %+v", loaded)
	}
	if loaded.Users["student@example.com"] != "persistent-1" {
		t.Errorf("expected users map to round-trip, got %+v", loaded.Users)
	}

	// Save again with a new version: upsert, not insert.
	toSave.Version = 4
	if err := m.Save(ctx, documentID, toSave); err != nil {
		t.Fatalf("re-save document: %v", err)
	}
	reloaded, err := m.Load(ctx, "ns1", "lesson1", "doc1")
	if err != nil {
		t.Fatalf("reload document: %v", err)
	}
	if reloaded.Version != 4 {
		t.Errorf("expected upsert to bump version to 4, got %d", reloaded.Version)
	}
}

func TestManager_MetricsStore_CountsAndAggregates(t *testing.T) {
	m := newTestManager(t)
	seedNamespaceAndLesson(t, m)
	ctx := context.Background()

	if _, err := m.db.ExecContext(ctx, `INSERT INTO users (id, email, is_instructor) VALUES ('u1', 'a@example.com', 1)`); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := m.db.ExecContext(ctx, `INSERT INTO action_log (id, user_id, action_type, spent_seconds) VALUES ('a1', 'u1', 'join_room', 30)`); err != nil {
		t.Fatalf("seed action log: %v", err)
	}

	if n, err := m.CountUsers(ctx); err != nil || n != 1 {
		t.Errorf("CountUsers = %d, %v, want 1, nil", n, err)
	}
	if n, err := m.CountInstructors(ctx); err != nil || n != 1 {
		t.Errorf("CountInstructors = %d, %v, want 1, nil", n, err)
	}
	if n, err := m.CountLessons(ctx); err != nil || n != 1 {
		t.Errorf("CountLessons = %d, %v, want 1, nil", n, err)
	}
	if n, err := m.CountNamespaces(ctx); err != nil || n != 1 {
		t.Errorf("CountNamespaces = %d, %v, want 1, nil", n, err)
	}

	counts, err := m.AggregateActionTypes(ctx, 10)
	if err != nil {
		t.Fatalf("aggregate action types: %v", err)
	}
	if counts["join_room"] != 1 {
		t.Errorf("expected join_room count 1, got %+v", counts)
	}

	total, err := m.TotalSpentTime(ctx)
	if err != nil {
		t.Fatalf("total spent time: %v", err)
	}
	if total != 30 {
		t.Errorf("TotalSpentTime = %d, want 30", total)
	}

	err = m.InsertOverviewStatistics(ctx, interfaces.OverviewStatistics{
		Users: 1, Instructors: 1, Lessons: 1, Namespaces: 1,
		ActionTypeCounts: counts, TotalSpentTime: total,
	})
	if err != nil {
		t.Fatalf("insert overview statistics: %v", err)
	}

	var rowCount int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM overview_statistics`).Scan(&rowCount); err != nil {
		t.Fatalf("count overview_statistics rows: %v", err)
	}
	if rowCount != 1 {
		t.Errorf("expected one overview_statistics row, got %d", rowCount)
	}
}

func TestManager_ComputeAndPersist(t *testing.T) {
	m := newTestManager(t)
	seedNamespaceAndLesson(t, m)
	ctx := context.Background()

	if _, err := m.db.ExecContext(ctx, `INSERT INTO users (id, email, is_instructor) VALUES ('u1', 'a@example.com', 0)`); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if err := m.ComputeAndPersist(ctx); err != nil {
		t.Fatalf("compute and persist: %v", err)
	}

	var rowCount int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM overview_statistics`).Scan(&rowCount); err != nil {
		t.Fatalf("count overview_statistics rows: %v", err)
	}
	if rowCount != 1 {
		t.Errorf("expected ComputeAndPersist to insert one row, got %d", rowCount)
	}
}

func TestManager_HealthCheckAndClose(t *testing.T) {
	m := newTestManager(t)
	if err := m.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	// A second close must be a no-op, not an error.
	if err := m.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := m.SetLessonActive(context.Background(), "lesson1", true); err == nil {
		t.Error("expected write after close to fail")
	}
}
