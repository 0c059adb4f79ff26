// Package store provides the relational store for projects, file
// records, reports, findings, chunk metadata, job checkpoints, and API
// keys in a single SQLite database file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store provides access to the SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens the database at dbPath, creating the directory structure
// if needed, and runs pending migrations.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory; %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database; %w", err)
	}

	// Serialize access to avoid SQLite write contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout; %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys; %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode; %w", err)
	}

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations; %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// migrate runs all pending migrations on the database.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table; %w", err)
	}

	currentVersion, err := s.getCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version; %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}
		if err := s.runMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to run migration %d (%s); %w", m.Version, m.Description, err)
		}
	}

	return nil
}

// getCurrentVersion returns the highest applied migration version.
func (s *Store) getCurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runMigration executes a single migration within a transaction.
func (s *Store) runMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return fmt.Errorf("failed to execute migration; %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration; %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction; %w", err)
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return s.getCurrentVersion(ctx)
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
}

// migrations contains all schema migrations in order.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create projects table",
		Up: `
			CREATE TABLE IF NOT EXISTS projects (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				origin TEXT NOT NULL DEFAULT 'archive',
				storage_path TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'created',
				error_message TEXT NOT NULL DEFAULT '',
				api_key_id TEXT NOT NULL DEFAULT '',
				file_count INTEGER NOT NULL DEFAULT 0,
				total_loc INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				analyzed_at TIMESTAMP
			);

			CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
		`,
	},
	{
		Version:     2,
		Description: "Create file_records table",
		Up: `
			CREATE TABLE IF NOT EXISTS file_records (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				rel_path TEXT NOT NULL,
				extension TEXT NOT NULL DEFAULT '',
				size INTEGER NOT NULL DEFAULT 0,
				content_hash TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL DEFAULT '',
				loc INTEGER NOT NULL DEFAULT 0,
				complexity INTEGER NOT NULL DEFAULT 0,
				decision TEXT NOT NULL DEFAULT '',
				skip_reason TEXT NOT NULL DEFAULT '',
				UNIQUE(project_id, rel_path)
			);

			CREATE INDEX IF NOT EXISTS idx_file_records_project ON file_records(project_id);
		`,
	},
	{
		Version:     3,
		Description: "Create reports table",
		Up: `
			CREATE TABLE IF NOT EXISTS reports (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL UNIQUE REFERENCES projects(id) ON DELETE CASCADE,
				summary TEXT NOT NULL DEFAULT '',
				recommendations TEXT NOT NULL DEFAULT '[]',
				health_score INTEGER NOT NULL DEFAULT 0,
				severity_counts TEXT NOT NULL DEFAULT '{}',
				duration_ms INTEGER NOT NULL DEFAULT 0,
				version TEXT NOT NULL DEFAULT '',
				generated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version:     4,
		Description: "Create review_findings table",
		Up: `
			CREATE TABLE IF NOT EXISTS review_findings (
				id TEXT PRIMARY KEY,
				report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
				project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				file_path TEXT NOT NULL DEFAULT '',
				symbol TEXT NOT NULL DEFAULT '',
				line_start INTEGER NOT NULL DEFAULT 0,
				line_end INTEGER NOT NULL DEFAULT 0,
				category TEXT NOT NULL,
				severity TEXT NOT NULL,
				description TEXT NOT NULL,
				explanation TEXT NOT NULL DEFAULT '',
				suggested_fix TEXT NOT NULL DEFAULT '',
				fixed_code TEXT NOT NULL DEFAULT '',
				original_code TEXT NOT NULL DEFAULT '',
				confidence REAL NOT NULL DEFAULT 0,
				position INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS idx_review_findings_report ON review_findings(report_id);
			CREATE INDEX IF NOT EXISTS idx_review_findings_project ON review_findings(project_id);
		`,
	},
	{
		Version:     5,
		Description: "Create chunks table",
		Up: `
			CREATE TABLE IF NOT EXISTS chunks (
				chunk_hash TEXT PRIMARY KEY,
				project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				file_path TEXT NOT NULL,
				start_line INTEGER NOT NULL,
				end_line INTEGER NOT NULL,
				language TEXT NOT NULL DEFAULT '',
				semantic_type TEXT NOT NULL DEFAULT '',
				semantic_name TEXT NOT NULL DEFAULT '',
				chunk_index INTEGER NOT NULL DEFAULT 0,
				total_chunks INTEGER NOT NULL DEFAULT 1,
				token_count INTEGER NOT NULL DEFAULT 0,
				text_hash TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX IF NOT EXISTS idx_chunks_project ON chunks(project_id);
			CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(project_id, file_path);
		`,
	},
	{
		Version:     6,
		Description: "Create job_checkpoints table",
		Up: `
			CREATE TABLE IF NOT EXISTS job_checkpoints (
				project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				phase TEXT NOT NULL,
				last_offset INTEGER NOT NULL DEFAULT 0,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (project_id, phase)
			);
		`,
	},
	{
		Version:     7,
		Description: "Create api_keys table",
		Up: `
			CREATE TABLE IF NOT EXISTS api_keys (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				key_hash TEXT NOT NULL UNIQUE,
				disabled INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				last_used_at TIMESTAMP
			);
		`,
	},
}
