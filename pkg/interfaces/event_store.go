package interfaces

import (
	"context"
	"time"

	"switchboard/pkg/types"
)

// EventStore is the "Event store" collaborator the Scheduler polls:
// query_due_events, mark_done, insert.
type EventStore interface {
	QueryDueEvents(ctx context.Context, now time.Time) ([]*types.ScheduledEvent, error)
	MarkDone(ctx context.Context, eventID string) error
	Insert(ctx context.Context, event *types.ScheduledEvent) error
}
