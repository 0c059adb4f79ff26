package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/archlens/archlens/internal/apperr"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

// Project lifecycle states. Transitions move strictly forward except
// the administrative reset back to FilesReady.
const (
	StatusCreated    ProjectStatus = "created"
	StatusFilesReady ProjectStatus = "files_ready"
	StatusQueued     ProjectStatus = "queued"
	StatusAnalyzing  ProjectStatus = "analyzing"
	StatusCompleted  ProjectStatus = "completed"
	StatusFailed     ProjectStatus = "failed"
)

// legalTransitions maps each status to the statuses it may move to.
// The entries back to FilesReady implement the administrative reset.
var legalTransitions = map[ProjectStatus][]ProjectStatus{
	StatusCreated:    {StatusFilesReady},
	StatusFilesReady: {StatusQueued},
	StatusQueued:     {StatusAnalyzing, StatusFilesReady},
	StatusAnalyzing:  {StatusCompleted, StatusFailed, StatusFilesReady},
	StatusFailed:     {StatusFilesReady},
}

// CanTransition reports whether moving from to next is legal.
func CanTransition(from, next ProjectStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Project is one submitted codebase and its analysis lifecycle.
type Project struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Origin       string        `json:"origin"`
	StoragePath  string        `json:"storage_path,omitempty"`
	Status       ProjectStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	APIKeyID     string        `json:"-"`
	FileCount    int           `json:"file_count"`
	TotalLOC     int           `json:"total_loc"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	AnalyzedAt   *time.Time    `json:"analyzed_at,omitempty"`
}

// Project origins.
const (
	OriginArchive   = "archive"
	OriginRemoteURL = "remote-url"
)

// CreateProject inserts a new project in Created status.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		return fmt.Errorf("project id is required")
	}
	if p.Origin == "" {
		p.Origin = OriginArchive
	}
	p.Status = StatusCreated

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, origin, storage_path, status, api_key_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Origin, p.StoragePath, p.Status, p.APIKeyID,
	)
	if err != nil {
		return fmt.Errorf("failed to create project %s; %w", p.ID, err)
	}
	return nil
}

// GetProject loads one project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, origin, storage_path, status, error_message, api_key_id,
		        file_count, total_loc, created_at, updated_at, analyzed_at
		 FROM projects WHERE id = ?`, id)

	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeProjectNotFound, "project %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s; %w", id, err)
	}
	return p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, origin, storage_path, status, error_message, api_key_id,
		        file_count, total_loc, created_at, updated_at, analyzed_at
		 FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects; %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project; %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpdateProjectStatus moves a project to next, enforcing the lifecycle.
// An illegal transition returns an error naming both states.
func (s *Store) UpdateProjectStatus(ctx context.Context, id string, next ProjectStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback()

	var current ProjectStatus
	err = tx.QueryRowContext(ctx, "SELECT status FROM projects WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Newf(apperr.CodeProjectNotFound, "project %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load project status; %w", err)
	}

	if !CanTransition(current, next) {
		return fmt.Errorf("illegal status transition %s -> %s for project %s", current, next, id)
	}

	if next == StatusCompleted {
		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET status = ?, error_message = '', analyzed_at = CURRENT_TIMESTAMP,
			 updated_at = CURRENT_TIMESTAMP WHERE id = ?`, next, id)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE projects SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", next, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update project status; %w", err)
	}

	return tx.Commit()
}

// MarkProjectFailed moves a project to Failed with an error message.
func (s *Store) MarkProjectFailed(ctx context.Context, id, message string) error {
	if err := s.UpdateProjectStatus(ctx, id, StatusFailed); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE projects SET error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		message, id)
	if err != nil {
		return fmt.Errorf("failed to record project error; %w", err)
	}
	return nil
}

// UpdateProjectCounts records the aggregate file count and LOC computed
// during ingestion.
func (s *Store) UpdateProjectCounts(ctx context.Context, id string, fileCount, totalLOC int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET file_count = ?, total_loc = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		fileCount, totalLOC, id)
	if err != nil {
		return fmt.Errorf("failed to update project counts; %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.Newf(apperr.CodeProjectNotFound, "project %s not found", id)
	}
	return nil
}

// UpdateProjectStorage records the blob object key for the uploaded
// archive.
func (s *Store) UpdateProjectStorage(ctx context.Context, id, storagePath string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE projects SET storage_path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		storagePath, id)
	if err != nil {
		return fmt.Errorf("failed to update project storage path; %w", err)
	}
	return nil
}

// ResetProject returns a queued, analyzing, or failed project to
// FilesReady, removing its chunk records and job checkpoints in the
// same transaction. Vector entries are the caller's concern.
func (s *Store) ResetProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback()

	var current ProjectStatus
	err = tx.QueryRowContext(ctx, "SELECT status FROM projects WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Newf(apperr.CodeProjectNotFound, "project %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load project status; %w", err)
	}

	if !CanTransition(current, StatusFilesReady) {
		return fmt.Errorf("project %s cannot be reset from status %s", id, current)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE project_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete chunks; %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM job_checkpoints WHERE project_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete job checkpoints; %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET status = ?, error_message = '', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, StatusFilesReady, id); err != nil {
		return fmt.Errorf("failed to reset project status; %w", err)
	}

	return tx.Commit()
}

// DeleteProject removes a project and everything it owns in one
// transaction: findings, chunks, checkpoints, report, file records,
// then the project row. Vector entries and blobs are deleted by the
// caller before this call.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM projects WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Newf(apperr.CodeProjectNotFound, "project %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to check project; %w", err)
	}

	steps := []struct {
		desc  string
		query string
	}{
		{"review findings", "DELETE FROM review_findings WHERE project_id = ?"},
		{"chunks", "DELETE FROM chunks WHERE project_id = ?"},
		{"job checkpoints", "DELETE FROM job_checkpoints WHERE project_id = ?"},
		{"report", "DELETE FROM reports WHERE project_id = ?"},
		{"file records", "DELETE FROM file_records WHERE project_id = ?"},
		{"project", "DELETE FROM projects WHERE id = ?"},
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
			return fmt.Errorf("failed to delete %s; %w", step.desc, err)
		}
	}

	return tx.Commit()
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*Project, error) {
	var p Project
	var analyzedAt sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.Origin, &p.StoragePath, &p.Status, &p.ErrorMessage,
		&p.APIKeyID, &p.FileCount, &p.TotalLOC, &p.CreatedAt, &p.UpdatedAt, &analyzedAt)
	if err != nil {
		return nil, err
	}
	if analyzedAt.Valid {
		t := analyzedAt.Time
		p.AnalyzedAt = &t
	}
	return &p, nil
}
