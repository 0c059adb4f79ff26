package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/archlens/archlens/internal/progress"
	"github.com/archlens/archlens/internal/store"
)

// keepAliveInterval is how often an SSE comment is written so idle
// streams survive proxies.
const keepAliveInterval = 15 * time.Second

// handleProgress streams progress updates for one project as
// server-sent events. The stream ends when the project reaches a
// terminal phase or the client disconnects.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	project, err := s.deps.Store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before the first write so no update published after the
	// snapshot is missed.
	updates, cancel := s.deps.Progress.Subscribe(projectID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, snapshotUpdate(project))
	flusher.Flush()
	if terminalStatus(project.Status) {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case u, ok := <-updates:
			if !ok {
				return
			}
			writeEvent(w, u)
			flusher.Flush()
			if u.Phase == progress.PhaseCompleted || u.Phase == progress.PhaseFailed {
				return
			}
		}
	}
}

// writeEvent writes one SSE progress event.
func writeEvent(w http.ResponseWriter, u progress.Update) {
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
}

// snapshotUpdate synthesizes an update describing the project's current
// state, sent first on every stream.
func snapshotUpdate(p *store.Project) progress.Update {
	u := progress.Update{ProjectID: p.ID}
	switch p.Status {
	case store.StatusCompleted:
		u.Phase = progress.PhaseCompleted
		u.Percent = 100
	case store.StatusFailed:
		u.Phase = progress.PhaseFailed
		u.Percent = 100
		u.Message = p.ErrorMessage
	case store.StatusAnalyzing:
		u.Phase = progress.PhaseAnalyzing
	default:
		u.Phase = progress.PhaseQueued
	}
	return u
}

// terminalStatus reports whether no further updates can follow.
func terminalStatus(status store.ProjectStatus) bool {
	return status == store.StatusCompleted || status == store.StatusFailed
}
