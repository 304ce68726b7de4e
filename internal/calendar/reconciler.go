package calendar

import (
	"context"
	"fmt"

	"plansync/internal/domain"
	"plansync/internal/metrics"
	"plansync/internal/outlook"
)

// reconcile converges the dedicated calendar with local state: remote events
// no task references anymore are deleted, and local references that resolve
// to no remote event are cleared. Returns the number of events removed.
func (e *Engine) reconcile(ctx context.Context, session domain.CalendarSession, calendarID string, userID int64) (int, []string) {
	remote, err := session.ListEvents(ctx, calendarID)
	if err != nil {
		return 0, []string{fmt.Sprintf("failed to list calendar events: %v", err)}
	}

	refs, err := e.store.GetEventReferences(ctx, userID)
	if err != nil {
		return 0, []string{fmt.Sprintf("failed to load event references: %v", err)}
	}

	present := make(map[string]struct{}, len(remote))
	removed := 0
	var errs []string

	for _, event := range remote {
		present[event.ID] = struct{}{}
		if _, referenced := refs[event.ID]; referenced {
			continue
		}
		// 404 means the event is already gone, which is the goal.
		if err := session.DeleteEvent(ctx, event.ID); err != nil && !outlook.IsNotFound(err) {
			errs = append(errs, fmt.Sprintf("failed to delete orphan event %s: %v", event.ID, err))
			continue
		}
		metrics.IncOrphanRemoved()
		removed++
		e.logger.Info().Int64("user_id", userID).Str("event_id", event.ID).Str("subject", event.Subject).Msg("orphan event removed")
	}

	for eventID, taskID := range refs {
		if _, ok := present[eventID]; ok {
			continue
		}
		if err := e.store.ClearTaskEventID(ctx, taskID); err != nil {
			errs = append(errs, fmt.Sprintf("failed to clear stale reference for task %d: %v", taskID, err))
			continue
		}
		e.logger.Info().Int64("user_id", userID).Int64("task_id", taskID).Str("event_id", eventID).Msg("stale event reference cleared")
	}

	return removed, errs
}
