// Package httpapi exposes the store as a thin JSON-over-HTTP surface: a
// session-authenticated API for the IDE client, a callback endpoint for the
// remote build servers, and sweep endpoints for the external scheduler.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/logging"
	"github.com/blockstudio/server/internal/server/config"
	"github.com/blockstudio/server/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	svc *services.Service
	log logging.Logger
	cfg *config.Config
}

func NewServer(svc *services.Service, log logging.Logger, cfg *config.Config) *Server {
	return &Server{svc: svc, log: log, cfg: cfg}
}

// Router wires every endpoint. The /api subtree (except login) requires a
// bearer session token; /callback and /admin are authenticated by network
// placement, matching how the build servers and the scheduler reach us.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/user", s.handleGetUser)
			r.Put("/user/field", s.handleSetUserField)
			r.Put("/user/password", s.handleSetUserPassword)
			r.Get("/user/files", s.handleListUserFiles)
			r.Get("/user/files/*", s.handleDownloadUserFile)
			r.Put("/user/files/*", s.handleUploadUserFile)
			r.Delete("/user/files/*", s.handleDeleteUserFile)

			r.Get("/projects", s.handleListProjects)
			r.Post("/projects", s.handleCreateProject)
			r.Get("/projects/{projectID}", s.handleGetProject)
			r.Delete("/projects/{projectID}", s.handleDeleteProject)
			r.Put("/projects/{projectID}/field", s.handleSetProjectField)
			r.Get("/projects/{projectID}/sources", s.handleListSources)
			r.Post("/projects/{projectID}/sources", s.handleAddSources)
			r.Post("/projects/{projectID}/sources/remove", s.handleRemoveSources)
			r.Get("/projects/{projectID}/outputs", s.handleListOutputs)
			r.Post("/projects/{projectID}/outputs", s.handleAddOutputs)
			r.Post("/projects/{projectID}/outputs/remove", s.handleRemoveOutputs)
			r.Get("/projects/{projectID}/export", s.handleExport)
			r.Get("/projects/{projectID}/build/{host}", s.handleGetBuildStatus)
			r.Get("/projects/{projectID}/files/*", s.handleDownloadFile)
			r.Put("/projects/{projectID}/files/*", s.handleUploadFile)
			r.Delete("/projects/{projectID}/files/*", s.handleDeleteFile)

			r.Post("/temp", s.handleUploadTempFile)
			r.Get("/temp/{handle}", s.handleOpenTempFile)
			r.Delete("/temp/{handle}", s.handleDeleteTempFile)

			r.Post("/nonce", s.handleStoreNonce)
			r.Get("/motd", s.handleGetMotd)
			r.Get("/splash", s.handleGetSplash)
			r.Get("/backpack/{backpackID}", s.handleGetBackpack)
			r.Put("/backpack/{backpackID}", s.handleUploadBackpack)
			r.Post("/feedback", s.handleStoreFeedback)
			r.Post("/corruption", s.handleStoreCorruption)
		})
	})

	// Build servers report progress here; no session token, the payload
	// addresses the build by its own ids.
	r.Post("/callback/build/{userID}/{projectID}", s.handleBuildCallback)

	// Paired devices resolve their nonce here before they hold a session.
	r.Get("/callback/nonce/{nonce}", s.handleGetNonce)

	// Rendezvous records for device pairing: the phone posts its address
	// under the pairing code, the IDE polls it back.
	r.Put("/callback/rendezvous/{key}", s.handleStoreRendezvous)
	r.Get("/callback/rendezvous/{key}", s.handleGetRendezvous)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/sweep/nonces", s.handleSweepNonces)
		r.Post("/sweep/pwdata", s.handleSweepPWData)
		r.Post("/pwreset", s.handleCreatePWReset)
		r.Get("/users", s.handleAdminListUsers)
		r.Get("/whitelist/{email}", s.handleWhitelistCheck)
		r.Post("/users", s.handleGetOrCreateUser)
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.EndpointAddrHTTP,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.Info(ctx, "http server listening", "addr", s.cfg.EndpointAddrHTTP)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error(context.Background(), "response encode error", "err", err)
	}
}

// writeError maps store errors onto HTTP statuses. Fatal storage errors are
// deliberately opaque: the client is told to retry, not what broke.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrorBadArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, common.ErrorNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		http.Error(w, "server error, please try again", http.StatusInternalServerError)
	}
}
