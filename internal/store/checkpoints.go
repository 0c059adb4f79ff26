package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveCheckpoint records how far a phase has progressed for a project,
// so a redelivered job can resume instead of restarting.
func (s *Store) SaveCheckpoint(ctx context.Context, projectID, phase string, lastOffset int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_checkpoints (project_id, phase, last_offset, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(project_id, phase) DO UPDATE SET
		   last_offset = excluded.last_offset,
		   updated_at = CURRENT_TIMESTAMP`,
		projectID, phase, lastOffset)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint; %w", err)
	}
	return nil
}

// GetCheckpoint returns the recorded offset for a project phase. The
// second value is false when no checkpoint exists.
func (s *Store) GetCheckpoint(ctx context.Context, projectID, phase string) (int, bool, error) {
	var offset int
	err := s.db.QueryRowContext(ctx,
		"SELECT last_offset FROM job_checkpoints WHERE project_id = ? AND phase = ?",
		projectID, phase).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load checkpoint; %w", err)
	}
	return offset, true, nil
}

// DeleteCheckpoints clears all checkpoints for a project.
func (s *Store) DeleteCheckpoints(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM job_checkpoints WHERE project_id = ?", projectID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoints; %w", err)
	}
	return nil
}
