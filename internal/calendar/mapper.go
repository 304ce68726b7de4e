package calendar

import (
	"errors"
	"fmt"
	"time"

	"plansync/internal/models"
)

// ErrNotMappable marks a task that cannot produce a calendar event because
// its data is structurally inconsistent, not because of a transient fault.
// Callers skip the task and leave any stored reference alone.
var ErrNotMappable = errors.New("task is not mappable to a calendar event")

// BuildEvent derives the provider payload for a resolved task. It is a pure
// function of its input: same task, same payload.
func BuildEvent(rt models.ResolvedTask) (*models.EventPayload, error) {
	start := eventDay(rt.Task.Date)
	payload := &models.EventPayload{
		Start: start,
		End:   start.AddDate(0, 0, 1),
	}

	switch rt.Kind {
	case models.KindStatus:
		mapStatus(rt, payload)
	case models.KindProject:
		if rt.Project == nil {
			return nil, fmt.Errorf("%w: task %d references no resolvable project", ErrNotMappable, rt.Task.ID)
		}
		payload.Subject = rt.Project.DisplayName()
		payload.Body = joinBody(rt.Project.Name, rt.Task.Description)
		payload.Category = models.CategoryProjectTask
	case models.KindDeadline, models.KindInternalDeadline, models.KindMilestone:
		if rt.Project == nil {
			return nil, fmt.Errorf("%w: task %d references no resolvable project", ErrNotMappable, rt.Task.ID)
		}
		payload.Subject = deadlineLabel(rt.Kind) + " - " + rt.Project.DisplayName()
		payload.Body = deadlineBody(rt.Project, rt.Client)
		payload.Category = deadlineCategory(rt.Task.Type)
	default:
		return nil, fmt.Errorf("%w: task %d has unknown type %q", ErrNotMappable, rt.Task.ID, rt.Task.Type)
	}

	return payload, nil
}

// mapStatus fills subject and category for a status task. Unrecognized
// status names mirror best-effort under the generic category.
func mapStatus(rt models.ResolvedTask, payload *models.EventPayload) {
	switch rt.StatusName {
	case models.StatusTimeOff:
		payload.Subject = models.SubjectTimeOff
		payload.Category = models.CategoryTimeOff
	case models.StatusOutOfOffice:
		payload.Subject = models.SubjectOutOfOffice
		payload.Category = models.CategoryOutOfOffice
	case models.StatusUnavailable:
		payload.Subject = models.StatusUnavailable
		payload.Category = models.CategoryUnavailable
	default:
		payload.Subject = rt.StatusName
		payload.Category = models.CategoryProjectTask
	}
	payload.Body = rt.Task.Description
}

func deadlineLabel(kind models.TaskKind) string {
	switch kind {
	case models.KindInternalDeadline:
		return "Internal Deadline"
	case models.KindMilestone:
		return "Milestone"
	default:
		return "Deadline"
	}
}

// deadlineCategory switches on the raw discriminant so an unrecognized
// deadline variant still files under "Deadline".
func deadlineCategory(taskType string) string {
	switch taskType {
	case models.TaskTypeInternalDeadline:
		return models.CategoryInternalDeadline
	case models.TaskTypeMilestone:
		return models.CategoryMilestone
	default:
		return models.CategoryDeadline
	}
}

func deadlineBody(project *models.Project, client *models.Client) string {
	if client != nil && client.Name != "" {
		return client.Name + " - " + project.Name
	}
	return project.Name
}

func joinBody(projectName, description string) string {
	if description == "" {
		return projectName
	}
	if projectName == "" {
		return description
	}
	return projectName + "\n" + description
}

// eventDay normalizes a task date to its calendar day. The stored timestamp
// may carry a time-of-day; only the date survives.
func eventDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
