package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/blockstudio/server/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string          `json:"token"`
	User  *models.Account `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	token, acct, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	acct.Password = ""
	s.writeJSON(w, http.StatusOK, loginResponse{Token: token, User: acct})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	acct, err := s.svc.GetUser(r.Context(), callerID(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	acct.Password = ""
	s.writeJSON(w, http.StatusOK, acct)
}

type setFieldRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func (s *Server) handleSetUserField(w http.ResponseWriter, r *http.Request) {
	var req setFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	err := s.svc.SetUserField(r.Context(), callerID(r.Context()), models.AccountField(req.Field), req.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleSetUserPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := s.svc.SetUserPassword(r.Context(), callerID(r.Context()), req.Password); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUserFiles(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.GetUserFiles(r.Context(), callerID(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleDownloadUserFile(w http.ResponseWriter, r *http.Request) {
	content, err := s.svc.DownloadUserFile(r.Context(), callerID(r.Context()), chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

func (s *Server) handleUploadUserFile(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := s.svc.UploadUserFile(r.Context(), callerID(r.Context()), chi.URLParam(r, "*"), content); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUserFile(w http.ResponseWriter, r *http.Request) {
	err := s.svc.DeleteUserFile(r.Context(), callerID(r.Context()), chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
