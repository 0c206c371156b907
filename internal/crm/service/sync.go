package service

import (
	"context"

	"github.com/chatlyhq/chatly/internal/clock"
	crmdomain "github.com/chatlyhq/chatly/internal/crm/domain"
	"github.com/chatlyhq/chatly/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CalendarTaskSync mirrors calendar event state onto linked tasks. The sync
// runs one way only: calendar to task, never task to calendar.
type CalendarTaskSync struct {
	log   *zap.Logger
	clock clock.Clock

	taskRepo repository.Repository[crmdomain.Task]
}

type CalendarTaskSyncParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

func NewCalendarTaskSync(p CalendarTaskSyncParam) *CalendarTaskSync {
	return &CalendarTaskSync{
		log:      p.Log.Named("crm.tasksync"),
		clock:    p.Clock,
		taskRepo: repository.ProvideStore[crmdomain.Task](p.DB),
	}
}

// Propagate applies the event's current time and status to every linked task
// with sync_with_calendar enabled.
func (s *CalendarTaskSync) Propagate(ctx context.Context, event *crmdomain.CalendarEvent) error {
	eventID := event.ID
	tasks, err := s.taskRepo.Find(ctx, &crmdomain.Task{
		CalendarEventID:  &eventID,
		SyncWithCalendar: true,
	})
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, task := range tasks {
		updates := map[string]any{
			"due_at":     event.StartsAt,
			"updated_at": now,
		}
		switch event.Status {
		case crmdomain.EventStatusCompleted:
			updates["status"] = crmdomain.TaskStatusDone
			updates["board"] = string(crmdomain.TaskStatusDone)
			updates["completed_at"] = now
		case crmdomain.EventStatusCanceled:
			updates["status"] = crmdomain.TaskStatusCanceled
			updates["board"] = string(crmdomain.TaskStatusCanceled)
		}
		if err := s.taskRepo.Update(ctx, task.ID.String(), updates); err != nil {
			return err
		}
	}
	return nil
}
