package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/blockstudio/server/internal/hexid"
	"github.com/blockstudio/server/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type nonceRequest struct {
	ProjectID int64 `json:"projectId"`
}

func (s *Server) handleStoreNonce(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	nonce, err := s.svc.StoreNonce(r.Context(), callerID(r.Context()), req.ProjectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

type nonceResponse struct {
	UserID    string `json:"userId"`
	ProjectID int64  `json:"projectId"`
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.GetNonce(r.Context(), chi.URLParam(r, "nonce"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonceResponse{UserID: hexid.Encode(n.AccountID), ProjectID: n.ProjectID})
}

func (s *Server) handleGetMotd(w http.ResponseWriter, r *http.Request) {
	motd, err := s.svc.GetCurrentMotd(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, motd)
}

func (s *Server) handleGetSplash(w http.ResponseWriter, r *http.Request) {
	sc, err := s.svc.GetSplashConfig(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleGetBackpack(w http.ResponseWriter, r *http.Request) {
	content, err := s.svc.GetBackpack(r.Context(), chi.URLParam(r, "backpackID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(content))
}

func (s *Server) handleUploadBackpack(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := s.svc.UploadBackpack(r.Context(), chi.URLParam(r, "backpackID"), string(content)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStoreFeedback(w http.ResponseWriter, r *http.Request) {
	var f models.Feedback
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := s.svc.StoreFeedback(r.Context(), &f); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type corruptionRequest struct {
	ProjectID int64  `json:"projectId"`
	FileName  string `json:"fileName"`
	Message   string `json:"message"`
}

func (s *Server) handleStoreCorruption(w http.ResponseWriter, r *http.Request) {
	var req corruptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	err := s.svc.StoreCorruptionRecord(r.Context(), callerID(r.Context()), req.ProjectID, req.FileName, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStoreRendezvous(w http.ResponseWriter, r *http.Request) {
	address, err := io.ReadAll(r.Body)
	if err != nil || len(address) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := s.svc.StoreIPAddressByKey(r.Context(), chi.URLParam(r, "key"), string(address)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRendezvous(w http.ResponseWriter, r *http.Request) {
	address, err := s.svc.GetIPAddressByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	_, _ = w.Write([]byte(address))
}

func (s *Server) handleWhitelistCheck(w http.ResponseWriter, r *http.Request) {
	ok, err := s.svc.IsUserInWhitelist(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"whitelisted": ok})
}

type buildCallbackRequest struct {
	Host     string `json:"host"`
	Progress int    `json:"progress"`
}

// handleBuildCallback receives progress reports from the remote build
// servers. The user and project come from the callback URL the build was
// started with.
func (s *Server) handleBuildCallback(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var req buildCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	err = s.svc.StoreBuildStatus(r.Context(), req.Host, chi.URLParam(r, "userID"), projectID, req.Progress)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadTempFile(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	handle, err := s.svc.UploadTempFile(r.Context(), content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"handle": handle})
}

func (s *Server) handleOpenTempFile(w http.ResponseWriter, r *http.Request) {
	content, err := s.svc.OpenTempFile(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

func (s *Server) handleDeleteTempFile(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTempFile(r.Context(), chi.URLParam(r, "handle")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type getOrCreateUserRequest struct {
	Email string `json:"email"`
}

// handleGetOrCreateUser backs the identity layer sitting in front of this
// server: it resolves an authenticated email to a store account, creating
// the account on first sight.
func (s *Server) handleGetOrCreateUser(w http.ResponseWriter, r *http.Request) {
	var req getOrCreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	acct, err := s.svc.GetOrCreateUserByEmail(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	acct.Password = ""
	s.writeJSON(w, http.StatusOK, acct)
}

type sweepResponse struct {
	Removed int64 `json:"removed"`
}

func (s *Server) handleSweepNonces(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.CleanUpNonces(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sweepResponse{Removed: n})
}

func (s *Server) handleSweepPWData(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.CleanUpPWData(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sweepResponse{Removed: n})
}

type pwResetRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleCreatePWReset(w http.ResponseWriter, r *http.Request) {
	var req pwResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	id, err := s.svc.CreatePWData(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// handleAdminListUsers pages accounts by id (?after=, ?limit=) or searches
// by email prefix (?email=).
func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	var accounts []*models.Account
	var err error
	if prefix := q.Get("email"); prefix != "" {
		accounts, err = s.svc.SearchUsersByEmail(r.Context(), prefix, limit)
	} else {
		var afterID int64
		if v := q.Get("after"); v != "" {
			afterID, _ = strconv.ParseInt(v, 10, 64)
		}
		accounts, err = s.svc.ListUsers(r.Context(), afterID, limit)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	for _, a := range accounts {
		a.Password = ""
	}
	s.writeJSON(w, http.StatusOK, accounts)
}
