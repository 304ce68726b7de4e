package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plansync/internal/models"
)

// CreateClient inserts a client record.
func (db *DB) CreateClient(ctx context.Context, client *models.Client) error {
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO clients (name, created_at) VALUES (?, ?)`,
		client.Name, client.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	client.ID = id
	return nil
}

// GetClient returns a client by id, or nil when it does not exist.
func (db *DB) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	var client models.Client
	err := db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM clients WHERE id = ?`, id,
	).Scan(&client.ID, &client.Name, &client.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client %d: %w", id, err)
	}
	return &client, nil
}

// CreateProject inserts a project record.
func (db *DB) CreateProject(ctx context.Context, project *models.Project) error {
	now := time.Now()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	result, err := db.ExecContext(ctx,
		`INSERT INTO projects (name, common_name, client_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		project.Name, project.CommonName, project.ClientID, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	project.ID = id
	return nil
}

// GetProject returns a project by id, or nil when it does not exist.
func (db *DB) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	err := db.QueryRowContext(ctx,
		`SELECT id, name, common_name, client_id, created_at, updated_at
         FROM projects WHERE id = ?`, id,
	).Scan(&project.ID, &project.Name, &project.CommonName, &project.ClientID,
		&project.CreatedAt, &project.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %d: %w", id, err)
	}
	return &project, nil
}

// UpdateProject rewrites a project's mutable fields.
func (db *DB) UpdateProject(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()
	_, err := db.ExecContext(ctx,
		`UPDATE projects SET name = ?, common_name = ?, client_id = ?, updated_at = ? WHERE id = ?`,
		project.Name, project.CommonName, project.ClientID, project.UpdatedAt, project.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project %d: %w", project.ID, err)
	}
	return nil
}
