// Package database adapts the external collaborator stores (Lesson store,
// Namespace store, Event store, Collaborative-document store,
// Metrics/statistics store) onto a single SQLite-backed Manager.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"switchboard/internal/logging"
	"switchboard/pkg/interfaces"
	"switchboard/pkg/types"
	dbconfig "switchboard/pkg/database"
)

// Manager implements interfaces.LessonStore, NamespaceStore, EventStore,
// DocumentStore and MetricsStore over one SQLite file. All writes funnel
// through a single goroutine (writeLoop); reads run directly against the
// pooled connection, matching SQLite's single-writer/many-reader model.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies SQLite pragmas tuned for a
// classroom-scale mix of frequent reads and bursty writes, and starts the
// write loop.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	m := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

// writeLoop serialises every write through one goroutine: SQLite allows a
// single writer at a time, and funnelling through a channel avoids
// SQLITE_BUSY errors under concurrent load rather than retrying at the
// call site.
func (m *Manager) writeLoop() {
	defer m.wg.Done()
	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				logging.L().Warn("database write failed, retrying in 5s", zap.Error(err))
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					logging.L().Error("database write failed after retry", zap.Error(err))
				}
			}
			op.result <- err
		case <-m.shutdown:
			return
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// --- Lesson store --------------------------------------------------------

// FindLesson is find_lesson: resolve a lesson by its namespace/lesson
// title pair.
func (m *Manager) FindLesson(ctx context.Context, namespaceTitle, lessonTitle string) (*interfaces.Lesson, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, namespace_id, namespace_name, lesson_name, active, lock_until
		FROM lessons WHERE namespace_name = ? AND lesson_name = ?`,
		namespaceTitle, lessonTitle)

	var l interfaces.Lesson
	var lockUntil sql.NullTime
	err := row.Scan(&l.ID, &l.NamespaceID, &l.NamespaceName, &l.LessonName, &l.Active, &lockUntil)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find lesson: %w", err)
	}
	if lockUntil.Valid {
		l.LockUntil = &lockUntil.Time
	}
	return &l, nil
}

// SetLessonActive is set_lesson_active.
func (m *Manager) SetLessonActive(ctx context.Context, lessonID string, active bool) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `UPDATE lessons SET active = ? WHERE id = ?`, active, lessonID)
		if err != nil {
			return fmt.Errorf("set lesson active: %w", err)
		}
		return nil
	})
}

// ClearLockUntil is clear_lock_until.
func (m *Manager) ClearLockUntil(ctx context.Context, lessonID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `UPDATE lessons SET lock_until = NULL WHERE id = ?`, lessonID)
		if err != nil {
			return fmt.Errorf("clear lock_until: %w", err)
		}
		return nil
	})
}

// --- Namespace store ------------------------------------------------------

// IsOwner is is_owner: whether userID is one of namespaceTitle's owners.
func (m *Manager) IsOwner(ctx context.Context, userID, namespaceTitle string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM namespace_owners o
		JOIN namespaces n ON n.id = o.namespace_id
		WHERE n.name = ? AND o.user_id = ?`, namespaceTitle, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("is_owner: %w", err)
	}
	return count > 0, nil
}

// --- Event store ----------------------------------------------------------

// QueryDueEvents is query_due_events: every not-yet-done event whose time
// has passed.
func (m *Manager) QueryDueEvents(ctx context.Context, now time.Time) ([]*types.ScheduledEvent, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, type, time, data, done, user
		FROM scheduled_events WHERE done = 0 AND time <= ?
		ORDER BY time ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("query due events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*types.ScheduledEvent
	for rows.Next() {
		ev, err := scanScheduledEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanScheduledEvent(rows *sql.Rows) (*types.ScheduledEvent, error) {
	var ev types.ScheduledEvent
	var dataJSON string
	var done int
	if err := rows.Scan(&ev.ID, &ev.Type, &ev.Time, &dataJSON, &done, &ev.User); err != nil {
		return nil, fmt.Errorf("scan scheduled event: %w", err)
	}
	ev.Done = done != 0
	if dataJSON != "" {
		if err := json.Unmarshal([]byte(dataJSON), &ev.Data); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
	}
	return &ev, nil
}

// MarkDone is mark_done.
func (m *Manager) MarkDone(ctx context.Context, eventID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `UPDATE scheduled_events SET done = 1 WHERE id = ?`, eventID)
		if err != nil {
			return fmt.Errorf("mark_done: %w", err)
		}
		return nil
	})
}

// Insert is insert: persist a new scheduled event, assigning it an id if
// it doesn't already have one.
func (m *Manager) Insert(ctx context.Context, event *types.ScheduledEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO scheduled_events (id, type, time, data, done, user)
			VALUES (?, ?, ?, ?, ?, ?)`,
			event.ID, event.Type, event.Time, string(dataJSON), event.Done, event.User)
		if err != nil {
			return fmt.Errorf("insert scheduled event: %w", err)
		}
		return nil
	})
}

// --- Collaborative-document store -----------------------------------------

// Load is load: the stored snapshot for (namespace, lesson, component), or
// nil if none exists yet.
func (m *Manager) Load(ctx context.Context, namespaceID, lessonID, componentID string) (*types.DocumentSnapshot, error) {
	documentID := types.DocumentID(namespaceID, lessonID, componentID)
	row := m.db.QueryRowContext(ctx, `
		SELECT version, doc, comments, compressed_steps, users
		FROM documents WHERE id = ?`, documentID)

	var snap types.DocumentSnapshot
	var commentsJSON, stepsJSON, usersJSON string
	err := row.Scan(&snap.Version, &snap.Doc, &commentsJSON, &stepsJSON, &usersJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if err := json.Unmarshal([]byte(commentsJSON), &snap.Comments); err != nil {
		return nil, fmt.Errorf("unmarshal comments: %w", err)
	}
	if err := json.Unmarshal([]byte(stepsJSON), &snap.CompressedSteps); err != nil {
		return nil, fmt.Errorf("unmarshal compressed steps: %w", err)
	}
	if err := json.Unmarshal([]byte(usersJSON), &snap.Users); err != nil {
		return nil, fmt.Errorf("unmarshal users: %w", err)
	}
	return &snap, nil
}

// Save is save: upsert by documentID.
func (m *Manager) Save(ctx context.Context, documentID string, snapshot *types.DocumentSnapshot) error {
	commentsJSON, err := json.Marshal(snapshot.Comments)
	if err != nil {
		return fmt.Errorf("marshal comments: %w", err)
	}
	stepsJSON, err := json.Marshal(snapshot.CompressedSteps)
	if err != nil {
		return fmt.Errorf("marshal compressed steps: %w", err)
	}
	usersJSON, err := json.Marshal(snapshot.Users)
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}

	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO documents (id, version, doc, comments, compressed_steps, users)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				version = excluded.version,
				doc = excluded.doc,
				comments = excluded.comments,
				compressed_steps = excluded.compressed_steps,
				users = excluded.users`,
			documentID, snapshot.Version, snapshot.Doc, string(commentsJSON), string(stepsJSON), string(usersJSON))
		if err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		return nil
	})
}

// --- Metrics/statistics store ----------------------------------------------

func (m *Manager) countRows(ctx context.Context, query string) (int, error) {
	var count int
	if err := m.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

func (m *Manager) CountUsers(ctx context.Context) (int, error) {
	return m.countRows(ctx, `SELECT COUNT(*) FROM users`)
}

func (m *Manager) CountInstructors(ctx context.Context) (int, error) {
	return m.countRows(ctx, `SELECT COUNT(*) FROM users WHERE is_instructor = 1`)
}

func (m *Manager) CountLessons(ctx context.Context) (int, error) {
	return m.countRows(ctx, `SELECT COUNT(*) FROM lessons`)
}

func (m *Manager) CountCohorts(ctx context.Context) (int, error) {
	return m.countRows(ctx, `SELECT COUNT(*) FROM cohorts`)
}

func (m *Manager) CountNamespaces(ctx context.Context) (int, error) {
	return m.countRows(ctx, `SELECT COUNT(*) FROM namespaces`)
}

func (m *Manager) CountEvents(ctx context.Context) (int, error) {
	return m.countRows(ctx, `SELECT COUNT(*) FROM scheduled_events`)
}

func (m *Manager) CountFiles(ctx context.Context) (int, error) {
	return m.countRows(ctx, `SELECT COUNT(*) FROM files`)
}

func (m *Manager) CountTickets(ctx context.Context) (int, error) {
	return m.countRows(ctx, `SELECT COUNT(*) FROM tickets`)
}

// ActiveUserCounts buckets users by how recently they were last seen,
// driven off the same updated_at column the scheduler's unlock/statistics
// events touch indirectly through action_log entries.
func (m *Manager) ActiveUserCounts(ctx context.Context) (lastHour, lastDay, lastWeek, lastMonth int, err error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE updated_at >= datetime('now', '-1 hour')),
			COUNT(*) FILTER (WHERE updated_at >= datetime('now', '-1 day')),
			COUNT(*) FILTER (WHERE updated_at >= datetime('now', '-7 days')),
			COUNT(*) FILTER (WHERE updated_at >= datetime('now', '-30 days'))
		FROM users`)
	if err = row.Scan(&lastHour, &lastDay, &lastWeek, &lastMonth); err != nil {
		err = fmt.Errorf("active user counts: %w", err)
	}
	return
}

// AggregateActionTypes counts the most frequent action_log entries, capped
// at limit distinct types.
func (m *Manager) AggregateActionTypes(ctx context.Context, limit int) (map[string]int, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT action_type, COUNT(*) FROM action_log
		GROUP BY action_type ORDER BY COUNT(*) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate action types: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var actionType string
		var count int
		if err := rows.Scan(&actionType, &count); err != nil {
			return nil, fmt.Errorf("scan action type: %w", err)
		}
		out[actionType] = count
	}
	return out, rows.Err()
}

// TotalSpentTime sums the session-duration column action_log carries for
// events that record one (in seconds).
func (m *Manager) TotalSpentTime(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := m.db.QueryRowContext(ctx, `SELECT SUM(spent_seconds) FROM action_log`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total spent time: %w", err)
	}
	return total.Int64, nil
}

// InsertOverviewStatistics persists one overview_statistics snapshot row.
func (m *Manager) InsertOverviewStatistics(ctx context.Context, row interfaces.OverviewStatistics) error {
	actionJSON, err := json.Marshal(row.ActionTypeCounts)
	if err != nil {
		return fmt.Errorf("marshal action type counts: %w", err)
	}
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO overview_statistics (
				computed_at, users, instructors, lessons, cohorts, namespaces, events, files, tickets,
				active_last_hour, active_last_day, active_last_week, active_last_month,
				action_type_counts, total_spent_time
			) VALUES (CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.Users, row.Instructors, row.Lessons, row.Cohorts, row.Namespaces, row.Events, row.Files, row.Tickets,
			row.ActiveLastHour, row.ActiveLastDay, row.ActiveLastWeek, row.ActiveLastMonth,
			string(actionJSON), row.TotalSpentTime)
		if err != nil {
			return fmt.Errorf("insert overview statistics: %w", err)
		}
		return nil
	})
}

// ComputeAndPersist implements scheduler.StatisticsComputer: it gathers
// every count and aggregate the Metrics/statistics store exposes into one
// overview_statistics snapshot row.
func (m *Manager) ComputeAndPersist(ctx context.Context) error {
	users, err := m.CountUsers(ctx)
	if err != nil {
		return err
	}
	instructors, err := m.CountInstructors(ctx)
	if err != nil {
		return err
	}
	lessons, err := m.CountLessons(ctx)
	if err != nil {
		return err
	}
	cohorts, err := m.CountCohorts(ctx)
	if err != nil {
		return err
	}
	namespaces, err := m.CountNamespaces(ctx)
	if err != nil {
		return err
	}
	events, err := m.CountEvents(ctx)
	if err != nil {
		return err
	}
	files, err := m.CountFiles(ctx)
	if err != nil {
		return err
	}
	tickets, err := m.CountTickets(ctx)
	if err != nil {
		return err
	}
	lastHour, lastDay, lastWeek, lastMonth, err := m.ActiveUserCounts(ctx)
	if err != nil {
		return err
	}
	actionCounts, err := m.AggregateActionTypes(ctx, 20)
	if err != nil {
		return err
	}
	totalSpent, err := m.TotalSpentTime(ctx)
	if err != nil {
		return err
	}

	return m.InsertOverviewStatistics(ctx, interfaces.OverviewStatistics{
		Users:            users,
		Instructors:      instructors,
		Lessons:          lessons,
		Cohorts:          cohorts,
		Namespaces:       namespaces,
		Events:           events,
		Files:            files,
		Tickets:          tickets,
		ActiveLastHour:   lastHour,
		ActiveLastDay:    lastDay,
		ActiveLastWeek:   lastWeek,
		ActiveLastMonth:  lastMonth,
		ActionTypeCounts: actionCounts,
		TotalSpentTime:   totalSpent,
	})
}

// --- Lifecycle --------------------------------------------------------------

// HealthCheck validates database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// GetDB returns the underlying connection, used by the migration runner.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close stops the write loop and closes the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func applySQLiteOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %q: %w", pragma, err)
		}
	}
	return nil
}
