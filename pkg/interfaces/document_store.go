package interfaces

import (
	"context"

	"switchboard/pkg/types"
)

// DocumentStore is the "Collaborative-document store" collaborator: load
// by (namespace, lesson, component), upsert by id.
type DocumentStore interface {
	Load(ctx context.Context, namespaceID, lessonID, componentID string) (*types.DocumentSnapshot, error)
	Save(ctx context.Context, documentID string, snapshot *types.DocumentSnapshot) error
}

// OverviewStatistics is the row the scheduler's overview_statistics event
// persists.
type OverviewStatistics struct {
	Users            int
	Instructors      int
	Lessons          int
	Cohorts          int
	Namespaces       int
	Events           int
	Files            int
	Tickets          int
	ActiveLastHour   int
	ActiveLastDay    int
	ActiveLastWeek   int
	ActiveLastMonth  int
	ActionTypeCounts map[string]int
	TotalSpentTime   int64
}

// MetricsStore is the "Metrics/statistics store" collaborator.
type MetricsStore interface {
	CountUsers(ctx context.Context) (int, error)
	CountInstructors(ctx context.Context) (int, error)
	CountLessons(ctx context.Context) (int, error)
	CountCohorts(ctx context.Context) (int, error)
	CountNamespaces(ctx context.Context) (int, error)
	CountEvents(ctx context.Context) (int, error)
	CountFiles(ctx context.Context) (int, error)
	CountTickets(ctx context.Context) (int, error)
	ActiveUserCounts(ctx context.Context) (lastHour, lastDay, lastWeek, lastMonth int, err error)
	AggregateActionTypes(ctx context.Context, limit int) (map[string]int, error)
	TotalSpentTime(ctx context.Context) (int64, error)
	InsertOverviewStatistics(ctx context.Context, row OverviewStatistics) error
}
