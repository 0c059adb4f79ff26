package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/archlens/archlens/internal/apperr"
	"github.com/archlens/archlens/internal/report"
	"github.com/archlens/archlens/internal/review"
)

// SaveReport persists a report and its findings, replacing any earlier
// report for the same project. One transaction covers the swap.
func (s *Store) SaveReport(ctx context.Context, r *report.Report) error {
	recommendations, err := json.Marshal(r.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations; %w", err)
	}
	severityCounts, err := json.Marshal(r.SeverityCounts)
	if err != nil {
		return fmt.Errorf("failed to encode severity counts; %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM review_findings WHERE project_id = ?", r.ProjectID); err != nil {
		return fmt.Errorf("failed to clear findings; %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM reports WHERE project_id = ?", r.ProjectID); err != nil {
		return fmt.Errorf("failed to clear report; %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reports (id, project_id, summary, recommendations, health_score,
		                      severity_counts, duration_ms, version, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProjectID, r.Summary, string(recommendations), r.HealthScore,
		string(severityCounts), r.Duration.Milliseconds(), r.Version, r.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report; %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO review_findings (id, report_id, project_id, file_path, symbol,
		                              line_start, line_end, category, severity, description,
		                              explanation, suggested_fix, fixed_code, original_code,
		                              confidence, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert; %w", err)
	}
	defer stmt.Close()

	for i, f := range r.Findings {
		_, err := stmt.ExecContext(ctx, f.ID, r.ID, r.ProjectID, f.FilePath, f.Symbol,
			f.LineStart, f.LineEnd, f.Category, f.Severity, f.Description,
			f.Explanation, f.SuggestedFix, f.FixedCode, f.OriginalCode, f.Confidence, i)
		if err != nil {
			return fmt.Errorf("failed to insert finding %s; %w", f.ID, err)
		}
	}

	return tx.Commit()
}

// GetReport loads the report for a project, findings in stored order.
func (s *Store) GetReport(ctx context.Context, projectID string) (*report.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, summary, recommendations, health_score, severity_counts,
		        duration_ms, version, generated_at
		 FROM reports WHERE project_id = ?`, projectID)

	var r report.Report
	var recommendations, severityCounts string
	var durationMS int64
	err := row.Scan(&r.ID, &r.ProjectID, &r.Summary, &recommendations, &r.HealthScore,
		&severityCounts, &durationMS, &r.Version, &r.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeReportNotFound, "no report for project %s", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report; %w", err)
	}

	if err := json.Unmarshal([]byte(recommendations), &r.Recommendations); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations; %w", err)
	}
	if err := json.Unmarshal([]byte(severityCounts), &r.SeverityCounts); err != nil {
		return nil, fmt.Errorf("failed to decode severity counts; %w", err)
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond

	findings, err := s.listFindings(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.Findings = findings
	return &r, nil
}

func (s *Store) listFindings(ctx context.Context, reportID string) ([]review.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path, symbol, line_start, line_end, category, severity,
		        description, explanation, suggested_fix, fixed_code, original_code, confidence
		 FROM review_findings WHERE report_id = ? ORDER BY position`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings; %w", err)
	}
	defer rows.Close()

	var findings []review.Finding
	for rows.Next() {
		var f review.Finding
		err := rows.Scan(&f.ID, &f.FilePath, &f.Symbol, &f.LineStart, &f.LineEnd,
			&f.Category, &f.Severity, &f.Description, &f.Explanation, &f.SuggestedFix,
			&f.FixedCode, &f.OriginalCode, &f.Confidence)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding; %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
