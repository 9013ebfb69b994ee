// Package services implements the project-store facade. Every public
// operation runs inside one database transaction (dbx.WithTx): commit on
// success, rollback on any failure, with the failure surfaced as a fatal
// *Error carrying whichever of (user, project, file) ids are known. The
// store keeps no in-process cache and never retries.
package services

import (
	"database/sql"

	"github.com/blockstudio/server/internal/logging"
	"github.com/blockstudio/server/internal/server/config"
	"github.com/blockstudio/server/internal/server/repositories/repomanager"
)

// Service is the transactional store for accounts, projects, files, and the
// auxiliary records. It owns the pooled connection handle for its lifetime;
// Close is the teardown hook.
type Service struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	log   logging.Logger
	cfg   *config.Config
}

// NewService constructs the store around an already-opened (and migrated)
// database handle.
func NewService(db *sql.DB, repos repomanager.RepositoryManager, log logging.Logger, cfg *config.Config) *Service {
	return &Service{db: db, repos: repos, log: log, cfg: cfg}
}

// Close releases the pooled connection factory.
func (s *Service) Close() error {
	return s.db.Close()
}
