package models

// Raw task type discriminants as stored by the planning layer.
const (
	TaskTypeStatus           = "status"
	TaskTypeProject          = "project"
	TaskTypeDeadline         = "deadline"
	TaskTypeInternalDeadline = "internal_deadline"
	TaskTypeMilestone        = "milestone"
)

// Status names recognized by the mapper. Matching is exact; anything else is
// mirrored best-effort under the Project Task category.
const (
	StatusTimeOff     = "Time Off"
	StatusOutOfOffice = "Out of Office"
	StatusUnavailable = "Unavailable"
)

// Subjects used for recognized status events.
const (
	SubjectTimeOff     = "PTO"
	SubjectOutOfOffice = "OOS"
)

// Event category taxonomy mirrored into the provider account. The strings are
// part of the wire contract; renaming one strands events filed under the old
// name.
const (
	CategoryProjectTask      = "Project Task"
	CategoryDeadline         = "Deadline"
	CategoryInternalDeadline = "Internal Deadline"
	CategoryMilestone        = "Project Milestone"
	CategoryOutOfOffice      = "Out of office"
	CategoryTimeOff          = "Time off"
	CategoryUnavailable      = "Unavailable"
)

// CategoryTaxonomy lists every category the taxonomy resolver ensures exists.
func CategoryTaxonomy() []string {
	return []string{
		CategoryProjectTask,
		CategoryDeadline,
		CategoryInternalDeadline,
		CategoryMilestone,
		CategoryOutOfOffice,
		CategoryTimeOff,
		CategoryUnavailable,
	}
}

// Job statuses; completed and failed are terminal.
const (
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	// DefaultBatchSize is the provider's hard limit on operations per batch
	// request.
	DefaultBatchSize = 20

	// DefaultTaskSyncTimeoutSeconds budgets a single-task sync fired from a
	// write path.
	DefaultTaskSyncTimeoutSeconds = 8

	// JobRetentionMinutes keeps finished jobs pollable before removal.
	JobRetentionMinutes = 5

	// DefaultCalendarName is the well-known name of the dedicated calendar.
	DefaultCalendarName = "Plansync"

	// WorkerQueueSize bounds the trigger worker's request channel.
	WorkerQueueSize = 128
)
