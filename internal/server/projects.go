package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/archlens/archlens/internal/apperr"
	"github.com/archlens/archlens/internal/blob"
	"github.com/archlens/archlens/internal/bus"
	"github.com/archlens/archlens/internal/jobs"
	"github.com/archlens/archlens/internal/store"
)

// uploadMemoryLimit is the in-memory threshold for multipart parsing;
// larger uploads spill to temporary files.
const uploadMemoryLimit = 32 << 20

// handleUpload accepts a multipart zip upload, validates it, stores the
// archive, and creates the project in files_ready.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		writeError(w, err)
		return
	}

	file, header, err := r.FormFile("archive")
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "missing multipart field \"archive\"")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "archlens-upload-*.zip")
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, file)
	if err != nil {
		writeError(w, err)
		return
	}

	fileCount, err := jobs.ValidateArchive(tmp.Name())
	if err != nil {
		writeError(w, err)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}
	if name == "" {
		name = "project"
	}

	id := uuid.NewString()
	key := blob.ObjectKey(id)
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Blob.Upload(r.Context(), key, tmp, size, blob.ArchiveContentType); err != nil {
		writeError(w, err)
		return
	}

	project := &store.Project{
		ID:          id,
		Name:        name,
		Origin:      store.OriginArchive,
		StoragePath: key,
		APIKeyID:    apiKeyID(r.Context()),
	}
	if err := s.registerUpload(r, project, fileCount); err != nil {
		// The archive is already in blob storage; drop it so a failed
		// registration leaves nothing behind.
		if cleanupErr := s.deps.Blob.DeleteByPrefix(r.Context(), blob.ProjectPrefix(id)); cleanupErr != nil {
			s.logger.Warn("failed to clean up orphaned archive", "project_id", id, "error", cleanupErr)
		}
		writeError(w, err)
		return
	}

	created, err := s.deps.Store.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	s.logger.Info("project uploaded",
		"project_id", id,
		"name", name,
		"size", size,
		"files", fileCount)
	writeJSON(w, http.StatusCreated, created)
}

// registerUpload persists the project row and walks it to files_ready.
func (s *Server) registerUpload(r *http.Request, project *store.Project, fileCount int) error {
	ctx := r.Context()
	if err := s.deps.Store.CreateProject(ctx, project); err != nil {
		return err
	}
	if err := s.deps.Store.UpdateProjectCounts(ctx, project.ID, fileCount, 0); err != nil {
		return err
	}
	return s.deps.Store.UpdateProjectStatus(ctx, project.ID, store.StatusFilesReady)
}

// analyzeRequest is the optional body of POST /analyze.
type analyzeRequest struct {
	Approve  bool `json:"approve"`
	Priority int  `json:"priority"`
}

// analyzeResponse acknowledges an enqueued analysis command.
type analyzeResponse struct {
	ProjectID     string `json:"project_id"`
	CorrelationID string `json:"correlation_id"`
	MessageID     string `json:"message_id"`
	Status        string `json:"status"`
}

// handleAnalyze enqueues a StartAnalysisCommand for a files_ready
// project.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := s.deps.Store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	switch project.Status {
	case store.StatusFilesReady:
	case store.StatusQueued, store.StatusAnalyzing:
		writeError(w, apperr.Newf(apperr.CodeProjectAlreadyAnalyzing,
			"project %s is already %s", projectID, project.Status))
		return
	default:
		writeErrorStatus(w, http.StatusConflict,
			"project "+projectID+" cannot be analyzed from status "+string(project.Status))
		return
	}

	cmd := bus.StartAnalysisCommand{
		ProjectID:     projectID,
		CorrelationID: uuid.NewString(),
		Priority:      req.Priority,
		Approved:      req.Approve,
		CreatedAt:     time.Now().UTC(),
	}
	messageID, err := s.deps.Producer.EnqueueAnalysis(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, analyzeResponse{
		ProjectID:     projectID,
		CorrelationID: cmd.CorrelationID,
		MessageID:     messageID,
		Status:        "queued",
	})
}

// handleGetProject returns one project.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.deps.Store.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// listResponse wraps the project list.
type listResponse struct {
	Projects []store.Project `json:"projects"`
}

// handleListProjects returns all projects, newest first.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.deps.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	writeJSON(w, http.StatusOK, listResponse{Projects: projects})
}

// handleGetReport returns the persisted report for a completed project.
// Projects still in flight answer 202 with Report.NotReady.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	project, err := s.deps.Store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	switch project.Status {
	case store.StatusCompleted:
	case store.StatusFailed:
		writeError(w, apperr.Newf(apperr.CodeReportGenerationFailed,
			"analysis failed: %s", project.ErrorMessage))
		return
	default:
		writeError(w, apperr.Newf(apperr.CodeReportNotReady,
			"project %s is %s", projectID, project.Status))
		return
	}

	report, err := s.deps.Store.GetReport(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handlePreflight routes the stored archive and returns the cost
// estimate without starting analysis.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	estimate, err := s.deps.Runner.Preflight(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

// handleReset clears derived artifacts and returns the project to
// files_ready.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	if err := s.deps.Runner.Reset(r.Context(), projectID); err != nil {
		writeError(w, err)
		return
	}
	project, err := s.deps.Store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleDeleteProject removes a project and all derived artifacts.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Runner.Delete(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
