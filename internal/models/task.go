package models

import "time"

// Task is a schedulable planning record owned by the CRUD layer. The engine
// reads its fields and writes back EventID only.
type Task struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	ProjectID   *int64    `json:"project_id,omitempty"`
	EventID     *string   `json:"event_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskKind is the resolved variant of a task. It is computed once when a task
// is loaded so the legacy project-name convention is decided in one place
// instead of leaking string comparisons into the mapper.
type TaskKind int

const (
	KindUnknown TaskKind = iota
	KindStatus
	KindProject
	KindDeadline
	KindInternalDeadline
	KindMilestone
)

func (k TaskKind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindProject:
		return "project"
	case KindDeadline:
		return "deadline"
	case KindInternalDeadline:
		return "internal_deadline"
	case KindMilestone:
		return "milestone"
	default:
		return "unknown"
	}
}

// Deadline reports whether the kind belongs to the deadline class.
func (k TaskKind) Deadline() bool {
	return k == KindDeadline || k == KindInternalDeadline || k == KindMilestone
}

// ResolvedTask pairs a task with its fixed kind and project snapshot. The
// mapper consumes this, never a raw Task.
type ResolvedTask struct {
	Task    Task
	Kind    TaskKind
	Project *Project
	Client  *Client

	// StatusName is the effective status label after the legacy project-name
	// override. Empty unless Kind == KindStatus.
	StatusName string
}

// statusProjects are project names that have historically doubled as status
// markers. Tasks pointing at them carry a project reference but must mirror
// as status events.
var statusProjects = map[string]struct{}{
	StatusTimeOff:     {},
	StatusOutOfOffice: {},
	StatusUnavailable: {},
}

// Resolve fixes a task's kind. project may be nil; a project-class task
// without a resolvable project keeps KindProject and the mapper rejects it as
// not mappable.
func Resolve(task Task, project *Project) ResolvedTask {
	r := ResolvedTask{Task: task, Project: project}

	switch task.Type {
	case TaskTypeStatus:
		r.Kind = KindStatus
		r.StatusName = task.Label
	case TaskTypeProject:
		r.Kind = KindProject
		if project != nil {
			if name, ok := statusProjectName(project); ok {
				r.Kind = KindStatus
				r.StatusName = name
			}
		}
	case TaskTypeDeadline:
		r.Kind = KindDeadline
	case TaskTypeInternalDeadline:
		r.Kind = KindInternalDeadline
	case TaskTypeMilestone:
		r.Kind = KindMilestone
	default:
		r.Kind = KindUnknown
	}

	return r
}

func statusProjectName(p *Project) (string, bool) {
	if _, ok := statusProjects[p.CommonName]; ok {
		return p.CommonName, true
	}
	if _, ok := statusProjects[p.Name]; ok {
		return p.Name, true
	}
	return "", false
}
