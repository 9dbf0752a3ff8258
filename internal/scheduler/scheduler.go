// Package scheduler implements a single periodic task that polls due
// events and processes them serially, one tick at a time.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"switchboard/internal/logging"
	"switchboard/internal/metrics"
	"switchboard/pkg/interfaces"
	"switchboard/pkg/types"
)

// Clock is injected so tests can control "now" instead of depending on
// wall time.
type Clock func() time.Time

// Scheduler runs EVENT_SCHEDULER_INTERVAL-spaced ticks processing due
// events. It holds no state of its own beyond its collaborators; all
// event state lives in the EventStore.
type Scheduler struct {
	events    interfaces.EventStore
	lessons   interfaces.LessonStore
	mailer    Mailer
	stats     StatisticsComputer
	now       Clock
	onEnqueue func(ev *types.ScheduledEvent)
}

// Mailer is the mail seam the Scheduler sends through; BreakerMailer in
// breaker.go implements it by wrapping interfaces.Mailer in a circuit breaker.
type Mailer interface {
	Send(ctx context.Context, mail interfaces.Mail) error
}

// StatisticsComputer computes and persists one overview_statistics
// snapshot; kept as its own seam since it touches a wide set of count
// queries unrelated to the rest of the Scheduler's job.
type StatisticsComputer interface {
	ComputeAndPersist(ctx context.Context) error
}

// New constructs a Scheduler. A nil now falls back to time.Now. Follow-up
// events scheduled by the statistics handler can be observed through
// SetOnEnqueue.
func New(events interfaces.EventStore, lessons interfaces.LessonStore, mailer Mailer, stats StatisticsComputer, now Clock) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{events: events, lessons: lessons, mailer: mailer, stats: stats, now: now}
}

// SetOnEnqueue installs an observer called whenever overview_statistics
// schedules its follow-up event (used by tests; nil disables it).
func (s *Scheduler) SetOnEnqueue(fn func(ev *types.ScheduledEvent)) { s.onEnqueue = fn }

// Run drives Tick on a ticker until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick is one scheduler pass: select due events, process each serially,
// and mark it done=true regardless of outcome. The scheduler does not
// retry; downstream systems own their own retries.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds()) }()

	due, err := s.events.QueryDueEvents(ctx, s.now())
	if err != nil {
		logging.L().Error("scheduler: query due events failed", zap.Error(err))
		return
	}
	for _, ev := range due {
		s.process(ctx, ev)
	}
}

func (s *Scheduler) process(ctx context.Context, ev *types.ScheduledEvent) {
	var err error
	switch ev.Type {
	case types.EventTypeUnlockLesson:
		err = s.unlockLesson(ctx, ev)
	case types.EventTypeSendEmail:
		err = s.sendEmail(ctx, ev)
	case types.EventTypeOverviewStatistics:
		err = s.overviewStatistics(ctx, ev)
	default:
		logging.L().Warn("scheduler: unknown event type", zap.String("type", ev.Type))
	}

	status := "ok"
	if err != nil {
		status = "error"
		logging.L().Error("scheduler: event processing failed",
			zap.String("type", ev.Type), zap.String("event_id", ev.ID), zap.Error(err))
	}
	metrics.SchedulerEventsProcessedTotal.WithLabelValues(ev.Type, status).Inc()

	// Marked done regardless of outcome: the scheduler never retries.
	if markErr := s.events.MarkDone(ctx, ev.ID); markErr != nil {
		logging.L().Error("scheduler: mark_done failed", zap.String("event_id", ev.ID), zap.Error(markErr))
	}
}

func (s *Scheduler) unlockLesson(ctx context.Context, ev *types.ScheduledEvent) error {
	namespaceName, _ := ev.Data["namespaceName"].(string)
	lessonName, _ := ev.Data["lessonName"].(string)
	lesson, err := s.lessons.FindLesson(ctx, namespaceName, lessonName)
	if err != nil {
		return err
	}
	if lesson == nil {
		return interfaces.ErrLessonNotFound
	}
	if err := s.lessons.SetLessonActive(ctx, lesson.ID, true); err != nil {
		return err
	}
	return s.lessons.ClearLockUntil(ctx, lesson.ID)
}

func (s *Scheduler) sendEmail(ctx context.Context, ev *types.ScheduledEvent) error {
	to, _ := ev.Data["to"].(string)
	subject, _ := ev.Data["subject"].(string)
	body, _ := ev.Data["body"].(string)
	return s.mailer.Send(ctx, interfaces.Mail{To: to, Subject: subject, Body: body, Data: ev.Data})
}

func (s *Scheduler) overviewStatistics(ctx context.Context, ev *types.ScheduledEvent) error {
	if err := s.stats.ComputeAndPersist(ctx); err != nil {
		return err
	}
	next := nextOverviewStatisticsTime(s.now())
	follow := &types.ScheduledEvent{
		Type: types.EventTypeOverviewStatistics,
		Time: next,
		Data: map[string]interface{}{},
		User: ev.User,
	}
	if err := s.events.Insert(ctx, follow); err != nil {
		return err
	}
	if s.onEnqueue != nil {
		s.onEnqueue(follow)
	}
	return nil
}

// nextOverviewStatisticsTime is one minute after the next midnight
// following now.
func nextOverviewStatisticsTime(now time.Time) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return midnight.Add(time.Minute)
}
