package domain

import (
	"context"

	"plansync/internal/models"
	"plansync/internal/outlook"
)

// Store is the relational storage the engine reads tasks from and writes
// remote event references back to. Satisfied by *database.DB.
type Store interface {
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	GetPlanningTasks(ctx context.Context, userID int64) ([]models.Task, error)
	GetDeadlineTasks(ctx context.Context, userID int64) ([]models.Task, error)
	SetTaskEventID(ctx context.Context, taskID int64, eventID string) error
	ClearTaskEventID(ctx context.Context, taskID int64) error
	GetEventReferences(ctx context.Context, userID int64) (map[string]int64, error)
	ClearEventReferences(ctx context.Context, userID int64) (int64, error)
	GetCalendarAccount(ctx context.Context, userID int64) (*models.CalendarAccount, error)
	SaveCalendarAccount(ctx context.Context, account *models.CalendarAccount) error
	SetAccountCalendarID(ctx context.Context, userID int64, calendarID string) error
	DeleteCalendarAccount(ctx context.Context, userID int64) error
	UpsertTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id int64) error
}

// JobStore persists bulk sync jobs with their retention windows. A missing
// or expired job reads back as nil.
type JobStore interface {
	Save(ctx context.Context, job *models.SyncJob) error
	Get(ctx context.Context, id string) (*models.SyncJob, error)
}

// CalendarSession is one user's view of the calendar provider. Satisfied by
// *outlook.Session.
type CalendarSession interface {
	ListCalendars(ctx context.Context) ([]outlook.Calendar, error)
	GetCalendar(ctx context.Context, id string) (*outlook.Calendar, error)
	CreateCalendar(ctx context.Context, name string) (*outlook.Calendar, error)
	ListCategories(ctx context.Context) ([]outlook.Category, error)
	CreateCategory(ctx context.Context, displayName, color string) (*outlook.Category, error)
	CreateEvent(ctx context.Context, calendarID string, event *outlook.Event) (*outlook.Event, error)
	UpdateEvent(ctx context.Context, eventID string, event *outlook.Event) (*outlook.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context, calendarID string) ([]outlook.Event, error)
	Batch(ctx context.Context, requests []outlook.BatchRequest) ([]outlook.BatchResponse, error)
}

// CalendarProvider mints per-user sessions from stored refresh tokens. A
// failed token exchange comes back as an error; callers treat it as a dead
// credential, not a transient fault.
type CalendarProvider interface {
	Session(ctx context.Context, refreshToken string) (CalendarSession, error)
}

// EventPublisher fans application events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SyncTrigger accepts sync work from the API and event subscribers without
// blocking callers beyond a fixed budget. Satisfied by *worker.SyncWorker.
type SyncTrigger interface {
	SyncTaskNow(ctx context.Context, taskID, userID int64) (bool, error)
	StartBulkSync(ctx context.Context, userID int64) (string, error)
	RemoveEventAsync(userID int64, eventID string)
}

// JobReader exposes job status lookups to the API layer.
type JobReader interface {
	Get(ctx context.Context, id string) (*models.SyncJob, error)
}
