// File: internal/infra/web/handlers.go
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"classroom-ai-grading/internal/domain"
	"classroom-ai-grading/internal/domain/model"
	"classroom-ai-grading/internal/infra/jobs"
)

// checkRequest is the JSON body for starting a check run.
type checkRequest struct {
	RootDir      string `json:"root_dir"`
	TemplatePath string `json:"template_path,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	AICheck      bool   `json:"ai_check"`
}

type errorResponse struct {
	Error string             `json:"error"`
	Job   *model.JobSnapshot `json:"job,omitempty"`
}

func (s *Server) startCheck(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.RootDir == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "root_dir is required"})
		return
	}

	snap, err := s.svc.Launch(jobs.LaunchRequest{
		ResourceKey:  roomID,
		RootDir:      req.RootDir,
		TemplatePath: req.TemplatePath,
		Prompt:       req.Prompt,
		AICheck:      req.AICheck,
	})
	if errors.Is(err, domain.ErrJobConflict) {
		// The snapshot identifies the run that already holds the room.
		writeJSON(w, http.StatusConflict, errorResponse{Error: "a check is already running for this room", Job: &snap})
		return
	}
	if err != nil {
		s.log.Error().Str("room", roomID).Err(err).Msg("launch failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to start check"})
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(chi.URLParam(r, "jobID"))
	if errors.Is(err, domain.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read job"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) jobReport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	path, err := s.svc.ReportPath(jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no report available for this job"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to resolve report"})
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, path)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Cancel(chi.URLParam(r, "jobID"))
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
	case errors.Is(err, domain.ErrJobNotCancellable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "job is not running"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to cancel job"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
