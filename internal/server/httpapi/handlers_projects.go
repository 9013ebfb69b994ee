package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/server/models"
	"github.com/blockstudio/server/internal/server/services"
	"github.com/go-chi/chi/v5"
)

func projectIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed project id", common.ErrorBadArgument)
	}
	return id, nil
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.GetProjects(r.Context(), callerID(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

type createProjectRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Settings string `json:"settings"`
	History  string `json:"history"`
	Files    []struct {
		Name    string `json:"name"`
		Content []byte `json:"content"`
	} `json:"files"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	files := make([]*models.ProjectFile, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, &models.ProjectFile{FileName: f.Name, Content: f.Content})
	}

	project := &models.Project{Name: req.Name, Type: req.Type, Settings: req.Settings, History: req.History}
	created, err := s.svc.CreateProject(r.Context(), callerID(r.Context()), project, files)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := projectIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.svc.GetProject(r.Context(), callerID(r.Context()), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := projectIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.svc.DeleteProject(r.Context(), callerID(r.Context()), projectID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type modifiedResponse struct {
	ModifiedAt time.Time `json:"modifiedAt"`
}

func (s *Server) handleSetProjectField(w http.ResponseWriter, r *http.Request) {
	projectID, err := projectIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req setFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	modified, err := s.svc.SetProjectField(r.Context(), callerID(r.Context()),
		projectID, models.ProjectField(req.Field), req.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, modifiedResponse{ModifiedAt: modified})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	s.listFiles(w, r, s.svc.GetProjectSourceFiles)
}

func (s *Server) handleListOutputs(w http.ResponseWriter, r *http.Request) {
	s.listFiles(w, r, s.svc.GetProjectOutputFiles)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, userID string, projectID int64) ([]string, error)) {
	projectID, err := projectIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	names, err := list(r.Context(), callerID(r.Context()), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

type fileNamesRequest struct {
	Names []string `json:"names"`
}

func (s *Server) handleAddSources(w http.ResponseWriter, r *http.Request) {
	s.changeFiles(w, r, s.svc.AddSourceFilesToProject)
}

func (s *Server) handleRemoveSources(w http.ResponseWriter, r *http.Request) {
	s.changeFiles(w, r, s.svc.RemoveSourceFilesFromProject)
}

func (s *Server) handleAddOutputs(w http.ResponseWriter, r *http.Request) {
	s.changeFiles(w, r, s.svc.AddOutputFilesToProject)
}

func (s *Server) handleRemoveOutputs(w http.ResponseWriter, r *http.Request) {
	s.changeFiles(w, r, s.svc.RemoveOutputFilesFromProject)
}

func (s *Server) changeFiles(w http.ResponseWriter, r *http.Request,
	change func(ctx context.Context, userID string, projectID int64, fileNames ...string) error) {
	projectID, err := projectIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req fileNamesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := change(r.Context(), callerID(r.Context()), projectID, req.Names...); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	projectID, err := projectIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	content, err := s.svc.DownloadRawFile(r.Context(), callerID(r.Context()), projectID, chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	projectID, err := projectIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	fileName := chi.URLParam(r, "*")
	var modified time.Time
	if r.URL.Query().Get("force") == "1" {
		modified, err = s.svc.UploadRawFileForce(r.Context(), callerID(r.Context()), projectID, fileName, content)
	} else {
		modified, err = s.svc.UploadRawFile(r.Context(), callerID(r.Context()), projectID, fileName, content)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, modifiedResponse{ModifiedAt: modified})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	projectID, err := projectIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	modified, err := s.svc.DeleteFile(r.Context(), callerID(r.Context()), projectID, chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, modifiedResponse{ModifiedAt: modified})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	projectID, err := projectIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	q := r.URL.Query()
	opts := services.ExportOptions{
		IncludeScreenshots: q.Get("screenshots") == "1",
		IncludeYail:        q.Get("yail") == "1",
		IncludeHistory:     q.Get("history") == "1",
		IncludeKeystore:    q.Get("keystore") == "1",
		ForGallery:         q.Get("gallery") == "1",
	}

	archive, err := s.svc.ExportProjectSourceZip(r.Context(), callerID(r.Context()), projectID, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+archive.ZipName+`"`)
	_, _ = w.Write(archive.Content)
}

func (s *Server) handleGetBuildStatus(w http.ResponseWriter, r *http.Request) {
	projectID, err := projectIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	progress, err := s.svc.GetBuildStatus(r.Context(), chi.URLParam(r, "host"), callerID(r.Context()), projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"progress": progress})
}
