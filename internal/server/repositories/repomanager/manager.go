// Package repomanager bundles the per-entity repositories behind one
// interface. Every accessor takes the dbx.DBTX to bind to, so a service can
// rebind the whole set to a transaction handle inside dbx.WithTx.
package repomanager

import (
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/server/repositories/accounts"
	"github.com/blockstudio/server/internal/server/repositories/files"
	"github.com/blockstudio/server/internal/server/repositories/misc"
	"github.com/blockstudio/server/internal/server/repositories/nonces"
	"github.com/blockstudio/server/internal/server/repositories/projects"
)

type RepositoryManager interface {
	Accounts(db dbx.DBTX) accounts.Repository
	Projects(db dbx.DBTX) projects.Repository
	Files(db dbx.DBTX) files.Repository
	Nonces(db dbx.DBTX) nonces.Repository
	Misc(db dbx.DBTX) misc.Repository
}
