package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plansync/internal/models"
)

const taskColumns = `id, user_id, date, type, label, description, project_id, event_id, created_at, updated_at`

var planningTypes = []interface{}{models.TaskTypeStatus, models.TaskTypeProject}

var deadlineTypes = []interface{}{models.TaskTypeDeadline, models.TaskTypeInternalDeadline, models.TaskTypeMilestone}

// UpsertTask inserts or replaces a task record. The CRUD layer is the source
// of truth for tasks; the engine stores the copy it mirrors from.
func (db *DB) UpsertTask(ctx context.Context, task *models.Task) error {
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	if task.ID == 0 {
		query := `INSERT INTO tasks (user_id, date, type, label, description, project_id, event_id, created_at, updated_at)
                  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		result, err := db.ExecContext(ctx, query,
			task.UserID, task.Date, task.Type, task.Label, task.Description,
			task.ProjectID, task.EventID, task.CreatedAt, task.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		task.ID = id
		return nil
	}

	query := `INSERT INTO tasks (id, user_id, date, type, label, description, project_id, event_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                user_id = excluded.user_id,
                date = excluded.date,
                type = excluded.type,
                label = excluded.label,
                description = excluded.description,
                project_id = excluded.project_id,
                updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		task.ID, task.UserID, task.Date, task.Type, task.Label, task.Description,
		task.ProjectID, task.EventID, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

// GetTask returns a task by id, or nil when it does not exist.
func (db *DB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	task, err := db.scanTask(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return task, nil
}

// DeleteTask removes a task record.
func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	return nil
}

// GetPlanningTasks returns all of a user's status and project tasks.
func (db *DB) GetPlanningTasks(ctx context.Context, userID int64) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
              WHERE user_id = ? AND type IN (?, ?)
              ORDER BY date, id`
	args := append([]interface{}{userID}, planningTypes...)
	return db.queryTasks(ctx, query, args...)
}

// GetDeadlineTasks returns all of a user's deadline-class tasks.
func (db *DB) GetDeadlineTasks(ctx context.Context, userID int64) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
              WHERE user_id = ? AND type IN (?, ?, ?)
              ORDER BY date, id`
	args := append([]interface{}{userID}, deadlineTypes...)
	return db.queryTasks(ctx, query, args...)
}

// SetTaskEventID stores the remote event reference on a task.
func (db *DB) SetTaskEventID(ctx context.Context, taskID int64, eventID string) error {
	query := `UPDATE tasks SET event_id = ?, updated_at = ? WHERE id = ?`
	if _, err := db.ExecContext(ctx, query, eventID, time.Now(), taskID); err != nil {
		return fmt.Errorf("failed to set event reference on task %d: %w", taskID, err)
	}
	return nil
}

// ClearTaskEventID drops a task's remote event reference.
func (db *DB) ClearTaskEventID(ctx context.Context, taskID int64) error {
	query := `UPDATE tasks SET event_id = NULL, updated_at = ? WHERE id = ?`
	if _, err := db.ExecContext(ctx, query, time.Now(), taskID); err != nil {
		return fmt.Errorf("failed to clear event reference on task %d: %w", taskID, err)
	}
	return nil
}

// GetEventReferences returns every stored remote event id for the user,
// keyed by event id with the owning task id as value.
func (db *DB) GetEventReferences(ctx context.Context, userID int64) (map[string]int64, error) {
	query := `SELECT id, event_id FROM tasks WHERE user_id = ? AND event_id IS NOT NULL AND event_id != ''`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event references: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]int64)
	for rows.Next() {
		var taskID int64
		var eventID string
		if err := rows.Scan(&taskID, &eventID); err != nil {
			return nil, fmt.Errorf("failed to scan event reference: %w", err)
		}
		refs[eventID] = taskID
	}
	return refs, rows.Err()
}

// ClearEventReferences drops every remote event reference for the user.
// Called when the user unlinks their calendar account.
func (db *DB) ClearEventReferences(ctx context.Context, userID int64) (int64, error) {
	query := `UPDATE tasks SET event_id = NULL, updated_at = ? WHERE user_id = ? AND event_id IS NOT NULL`
	result, err := db.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear event references: %w", err)
	}
	cleared, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared references: %w", err)
	}
	return cleared, nil
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...interface{}) ([]models.Task, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var task models.Task
		if err := rows.Scan(
			&task.ID, &task.UserID, &task.Date, &task.Type, &task.Label,
			&task.Description, &task.ProjectID, &task.EventID,
			&task.CreatedAt, &task.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (db *DB) scanTask(row *sql.Row) (*models.Task, error) {
	var task models.Task
	err := row.Scan(
		&task.ID, &task.UserID, &task.Date, &task.Type, &task.Label,
		&task.Description, &task.ProjectID, &task.EventID,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}
