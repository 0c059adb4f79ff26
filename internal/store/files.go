package store

import (
	"context"
	"fmt"
)

// FileRecord is the routing decision and metrics for one file inside a
// project's archive. Records are immutable; re-ingestion replaces the
// whole set.
type FileRecord struct {
	ID          int64  `json:"id"`
	ProjectID   string `json:"project_id"`
	RelPath     string `json:"rel_path"`
	Extension   string `json:"extension"`
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"`
	Language    string `json:"language,omitempty"`
	LOC         int    `json:"loc"`
	Complexity  int    `json:"complexity"`
	Decision    string `json:"decision"`
	SkipReason  string `json:"skip_reason,omitempty"`
}

// Routing decisions recorded per file.
const (
	DecisionAnalyze = "analyze"
	DecisionSkip    = "skip"
)

// ReplaceFileRecords swaps the full file set for a project in one
// transaction.
func (s *Store) ReplaceFileRecords(ctx context.Context, projectID string, records []FileRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM file_records WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("failed to clear file records; %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO file_records (project_id, rel_path, extension, size, content_hash,
		                           language, loc, complexity, decision, skip_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare file record insert; %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, projectID, r.RelPath, r.Extension, r.Size,
			r.ContentHash, r.Language, r.LOC, r.Complexity, r.Decision, r.SkipReason)
		if err != nil {
			return fmt.Errorf("failed to insert file record %s; %w", r.RelPath, err)
		}
	}

	return tx.Commit()
}

// ListFileRecords returns a project's file records ordered by path.
func (s *Store) ListFileRecords(ctx context.Context, projectID string) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, rel_path, extension, size, content_hash,
		        language, loc, complexity, decision, skip_reason
		 FROM file_records WHERE project_id = ? ORDER BY rel_path`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list file records; %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var r FileRecord
		err := rows.Scan(&r.ID, &r.ProjectID, &r.RelPath, &r.Extension, &r.Size,
			&r.ContentHash, &r.Language, &r.LOC, &r.Complexity, &r.Decision, &r.SkipReason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file record; %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountFileRecords returns how many analyzable files a project has.
func (s *Store) CountFileRecords(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM file_records WHERE project_id = ? AND decision = ?",
		projectID, DecisionAnalyze).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count file records; %w", err)
	}
	return n, nil
}
