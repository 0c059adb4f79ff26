package store

import (
	"context"
	"fmt"

	"github.com/archlens/archlens/internal/chunker"
)

// SaveChunks records chunk metadata for later lookups and cleanup. The
// chunk hash is content-derived, so re-chunking an unchanged file hits
// the conflict path and the row stays as it was. Chunk text is not
// persisted; only hashes and location metadata are.
func (s *Store) SaveChunks(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (chunk_hash, project_id, file_path, start_line, end_line,
		                     language, semantic_type, semantic_name, chunk_index,
		                     total_chunks, token_count, text_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chunk_hash) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert; %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		_, err := stmt.ExecContext(ctx, c.ChunkHash, c.ProjectID, c.FilePath, c.StartLine,
			c.EndLine, c.Language, c.SemanticType, c.SemanticName, c.ChunkIndex,
			c.TotalChunks, c.TokenCount, c.TextHash)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s; %w", c.ChunkHash, err)
		}
	}

	return tx.Commit()
}

// DeleteChunks removes all chunk records for a project.
func (s *Store) DeleteChunks(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE project_id = ?", projectID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks; %w", err)
	}
	return nil
}

// CountChunks returns how many chunks a project has recorded.
func (s *Store) CountChunks(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE project_id = ?", projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks; %w", err)
	}
	return n, nil
}
