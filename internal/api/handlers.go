package api

import (
	"errors"
	"net/http"
	"strings"

	"plansync/internal/events"
	"plansync/internal/jobs"
	"plansync/internal/models"
)

type syncTaskRequest struct {
	TaskID int64 `json:"task_id"`
	UserID int64 `json:"user_id"`
}

type syncBulkRequest struct {
	UserID int64 `json:"user_id"`
}

type taskEventRequest struct {
	Type string      `json:"type"`
	Task models.Task `json:"task"`
}

type accountEventRequest struct {
	Type         string `json:"type"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// handleSyncTask fires a best-effort single-task sync. Expected shortfalls
// (not connected, over budget, provider down) come back as 200 with
// synced=false; the caller's local write must never fail on this call.
func (s *HTTPServer) handleSyncTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body syncTaskRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.TaskID <= 0 || body.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "task_id and user_id are required")
		return
	}

	synced, err := s.trigger.SyncTaskNow(r.Context(), body.TaskID, body.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("task_id", body.TaskID).Int64("user_id", body.UserID).Msg("task sync attempt failed")
		synced = false
	}
	writeJSON(w, http.StatusOK, map[string]bool{"synced": synced})
}

func (s *HTTPServer) handleSyncBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body syncBulkRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	jobID, err := s.trigger.StartBulkSync(r.Context(), body.UserID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", body.UserID).Msg("failed to start bulk sync")
		writeError(w, http.StatusInternalServerError, "failed to start bulk sync")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *HTTPServer) handleSyncJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/v1/sync/jobs/"
	jobID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, prefix))
	if jobID == "" || strings.Contains(jobID, "/") {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := s.jobs.Get(r.Context(), jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to load sync job")
		writeError(w, http.StatusInternalServerError, "failed to load sync job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleTaskEvent ingests task mutation notifications from the CRUD layer:
// the task copy is persisted (or dropped) first, then the matching event
// goes onto the bus for the sync subscribers.
func (s *HTTPServer) handleTaskEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body taskEventRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Task.ID <= 0 || body.Task.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "task id and user_id are required")
		return
	}

	switch body.Type {
	case "created", "updated":
		// The upsert never touches event_id; the stored remote reference
		// survives collaborator updates.
		if err := s.store.UpsertTask(r.Context(), &body.Task); err != nil {
			s.logger.Error().Err(err).Int64("task_id", body.Task.ID).Msg("failed to persist task")
			writeError(w, http.StatusInternalServerError, "failed to persist task")
			return
		}
		eventType := events.EventTaskCreated
		if body.Type == "updated" {
			eventType = events.EventTaskUpdated
		}
		s.publishTaskEvent(eventType, body.Task, "")
	case "deleted":
		// Capture the remote reference before the row goes away so the
		// subscriber can clean up the provider side.
		eventID := ""
		if stored, err := s.store.GetTask(r.Context(), body.Task.ID); err == nil && stored != nil && stored.EventID != nil {
			eventID = *stored.EventID
		}
		if err := s.store.DeleteTask(r.Context(), body.Task.ID); err != nil {
			s.logger.Error().Err(err).Int64("task_id", body.Task.ID).Msg("failed to delete task")
			writeError(w, http.StatusInternalServerError, "failed to delete task")
			return
		}
		s.publishTaskEvent(events.EventTaskDeleted, body.Task, eventID)
	default:
		writeError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleAccountEvent ingests calendar link and unlink notifications.
func (s *HTTPServer) handleAccountEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body accountEventRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	switch body.Type {
	case "linked":
		if body.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "refresh_token is required")
			return
		}
		account := &models.CalendarAccount{UserID: body.UserID, RefreshToken: body.RefreshToken}
		if err := s.store.SaveCalendarAccount(r.Context(), account); err != nil {
			s.logger.Error().Err(err).Int64("user_id", body.UserID).Msg("failed to save calendar account")
			writeError(w, http.StatusInternalServerError, "failed to save calendar account")
			return
		}
		s.publishAccountEvent(events.EventCalendarLinked, body.UserID)
	case "unlinked":
		if err := s.store.DeleteCalendarAccount(r.Context(), body.UserID); err != nil {
			s.logger.Error().Err(err).Int64("user_id", body.UserID).Msg("failed to delete calendar account")
			writeError(w, http.StatusInternalServerError, "failed to delete calendar account")
			return
		}
		s.publishAccountEvent(events.EventCalendarUnlinked, body.UserID)
	default:
		writeError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) publishTaskEvent(eventType string, task models.Task, eventID string) {
	payload := events.TaskEventPayload{
		TaskID:      task.ID,
		UserID:      task.UserID,
		Type:        task.Type,
		Label:       task.Label,
		Description: task.Description,
		Date:        task.Date,
		ProjectID:   task.ProjectID,
		EventID:     eventID,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Int64("task_id", task.ID).Msg("failed to publish task event")
	}
}

func (s *HTTPServer) publishAccountEvent(eventType string, userID int64) {
	if err := s.bus.PublishJSON(eventType, events.AccountEventPayload{UserID: userID}); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Int64("user_id", userID).Msg("failed to publish account event")
	}
}
