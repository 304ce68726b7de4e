package calendar

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"plansync/internal/domain"
	"plansync/internal/metrics"
	"plansync/internal/models"
	"plansync/internal/outlook"
)

// syncItem is one task ready to be written, payload already built.
type syncItem struct {
	task    *models.Task
	payload *models.EventPayload
}

// payloadFor builds and validates the event payload for a task, loading its
// project and client as needed.
func (e *Engine) payloadFor(ctx context.Context, task *models.Task) (*models.EventPayload, error) {
	var project *models.Project
	var client *models.Client

	if task.ProjectID != nil {
		p, err := e.store.GetProject(ctx, *task.ProjectID)
		if err != nil {
			return nil, err
		}
		project = p
		if project != nil && project.ClientID != nil {
			c, err := e.store.GetClient(ctx, *project.ClientID)
			if err != nil {
				return nil, err
			}
			client = c
		}
	}

	resolved := models.Resolve(*task, project)
	resolved.Client = client

	payload, err := BuildEvent(resolved)
	if err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("task %d produced an invalid payload: %w", task.ID, err)
	}
	return payload, nil
}

func eventRef(task *models.Task) string {
	if task.EventID == nil {
		return ""
	}
	return *task.EventID
}

func (e *Engine) storeRef(ctx context.Context, task *models.Task, eventID string) error {
	if err := e.store.SetTaskEventID(ctx, task.ID, eventID); err != nil {
		return fmt.Errorf("failed to store event reference for task %d: %w", task.ID, err)
	}
	task.EventID = &eventID
	return nil
}

func (e *Engine) clearRef(ctx context.Context, task *models.Task) error {
	if err := e.store.ClearTaskEventID(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to clear event reference for task %d: %w", task.ID, err)
	}
	task.EventID = nil
	return nil
}

// upsertEvent writes one task's event: update in place when a reference
// exists, create otherwise. A 404 on update means the remote event
// vanished; the stale reference is cleared and the event recreated.
func (e *Engine) upsertEvent(ctx context.Context, session domain.CalendarSession, calendarID string, task *models.Task, payload *models.EventPayload) (bool, error) {
	event := outlook.FromPayload(payload)

	if ref := eventRef(task); ref != "" {
		_, err := session.UpdateEvent(ctx, ref, event)
		if err == nil {
			metrics.IncEventWritten("update")
			return false, nil
		}
		if !outlook.IsNotFound(err) {
			return false, fmt.Errorf("failed to update event %s: %w", ref, err)
		}
		e.logger.Info().Int64("task_id", task.ID).Str("event_id", ref).Msg("remote event gone, recreating")
		if err := e.clearRef(ctx, task); err != nil {
			return false, err
		}
	}

	created, err := session.CreateEvent(ctx, calendarID, event)
	if err != nil {
		return false, fmt.Errorf("failed to create event: %w", err)
	}
	if err := e.storeRef(ctx, task, created.ID); err != nil {
		return false, err
	}
	metrics.IncEventWritten("create")
	return true, nil
}

// syncPhase maps a slice of tasks and writes them in batches of up to the
// configured size. Returns how many tasks synced plus the non-fatal errors
// collected along the way.
func (e *Engine) syncPhase(ctx context.Context, session domain.CalendarSession, calendarID string, tasks []models.Task) (int, []string) {
	var items []syncItem
	var errs []string

	for i := range tasks {
		task := &tasks[i]
		payload, err := e.payloadFor(ctx, task)
		if err != nil {
			if errors.Is(err, ErrNotMappable) {
				e.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("task skipped, no event payload")
				metrics.IncUnmappableTask()
			}
			errs = append(errs, fmt.Sprintf("task %d: %v", task.ID, err))
			continue
		}
		items = append(items, syncItem{task: task, payload: payload})
	}

	synced := 0
	for start := 0; start < len(items); start += e.batchSize {
		end := start + e.batchSize
		if end > len(items) {
			end = len(items)
		}
		n, batchErrs := e.syncBatch(ctx, session, calendarID, items[start:end])
		synced += n
		errs = append(errs, batchErrs...)
	}
	return synced, errs
}

// syncBatch submits one batch round trip. Whole-batch failure falls back to
// one-at-a-time execution; an update that 404s inside the batch has its
// reference cleared and is recreated in a second pass.
func (e *Engine) syncBatch(ctx context.Context, session domain.CalendarSession, calendarID string, items []syncItem) (int, []string) {
	requests := make([]outlook.BatchRequest, 0, len(items))
	for i, item := range items {
		id := strconv.Itoa(i + 1)
		event := outlook.FromPayload(item.payload)
		if ref := eventRef(item.task); ref != "" {
			requests = append(requests, outlook.NewEventUpdate(id, ref, event))
		} else {
			requests = append(requests, outlook.NewEventCreate(id, calendarID, event))
		}
	}

	responses, err := session.Batch(ctx, requests)
	if err != nil {
		e.logger.Warn().Err(err).Int("size", len(items)).Msg("batch failed, retrying operations one by one")
		return e.syncOneByOne(ctx, session, calendarID, items)
	}

	byID := make(map[string]*outlook.BatchResponse, len(responses))
	for i := range responses {
		byID[responses[i].ID] = &responses[i]
	}

	synced := 0
	var errs []string
	var recreate []syncItem

	for i, item := range items {
		response := byID[strconv.Itoa(i+1)]
		if response == nil {
			errs = append(errs, fmt.Sprintf("task %d: batch response missing", item.task.ID))
			continue
		}

		wasUpdate := eventRef(item.task) != ""
		switch {
		case response.OK() && wasUpdate:
			metrics.IncEventWritten("update")
			synced++
		case response.OK():
			created, decodeErr := response.Event()
			if decodeErr != nil {
				errs = append(errs, fmt.Sprintf("task %d: %v", item.task.ID, decodeErr))
				continue
			}
			if created.ID == "" {
				errs = append(errs, fmt.Sprintf("task %d: created event has no id", item.task.ID))
				continue
			}
			if err := e.storeRef(ctx, item.task, created.ID); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			metrics.IncEventWritten("create")
			synced++
		case response.NotFound() && wasUpdate:
			e.logger.Info().Int64("task_id", item.task.ID).Str("event_id", eventRef(item.task)).Msg("remote event gone, recreating")
			if err := e.clearRef(ctx, item.task); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			recreate = append(recreate, item)
		default:
			errs = append(errs, fmt.Sprintf("task %d: %v", item.task.ID, response.Err()))
		}
	}

	// The second pass holds only creates, so it cannot recurse further.
	if len(recreate) > 0 {
		n, recreateErrs := e.syncBatch(ctx, session, calendarID, recreate)
		synced += n
		errs = append(errs, recreateErrs...)
	}

	return synced, errs
}

// syncOneByOne is the degraded path after a whole-batch failure.
func (e *Engine) syncOneByOne(ctx context.Context, session domain.CalendarSession, calendarID string, items []syncItem) (int, []string) {
	synced := 0
	var errs []string
	for _, item := range items {
		if _, err := e.upsertEvent(ctx, session, calendarID, item.task, item.payload); err != nil {
			errs = append(errs, fmt.Sprintf("task %d: %v", item.task.ID, err))
			continue
		}
		synced++
	}
	return synced, errs
}
