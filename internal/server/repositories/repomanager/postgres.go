package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/server/migrations"
	"github.com/blockstudio/server/internal/server/repositories/accounts"
	"github.com/blockstudio/server/internal/server/repositories/files"
	"github.com/blockstudio/server/internal/server/repositories/misc"
	"github.com/blockstudio/server/internal/server/repositories/nonces"
	"github.com/blockstudio/server/internal/server/repositories/projects"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresManager hands out Postgres repository implementations.
type PostgresManager struct{}

func NewPostgresManager() *PostgresManager {
	return &PostgresManager{}
}

func (m *PostgresManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db)
}

func (m *PostgresManager) Projects(db dbx.DBTX) projects.Repository {
	return projects.NewPostgresRepository(db)
}

func (m *PostgresManager) Files(db dbx.DBTX) files.Repository {
	return files.NewPostgresRepository(db)
}

func (m *PostgresManager) Nonces(db dbx.DBTX) nonces.Repository {
	return nonces.NewPostgresRepository(db)
}

func (m *PostgresManager) Misc(db dbx.DBTX) misc.Repository {
	return misc.NewPostgresRepository(db)
}

// OpenPostgres opens the pooled connection factory and applies the embedded
// schema migrations. The returned handle is process-wide: constructed once
// at store construction and shared by all calls until Close.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return db, nil
}

// RunMigrations applies the embedded goose migrations. The DDL is
// IF NOT EXISTS throughout, so this is safe to run on every startup.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}
