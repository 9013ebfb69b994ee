// Package misc provides PostgreSQL-backed storage for the small auxiliary
// records: singleton configuration blobs keyed by string (MOTD, splash),
// build-progress rows, backpacks, ip-address records, the whitelist, and the
// append-only feedback and corruption tables.
package misc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/server/models"
)

// PostgresRepository implements auxiliary-record storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetValue returns the misc blob stored under key.
func (r *PostgresRepository) GetValue(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM misc WHERE key = $1`

	var value string
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return value, nil
}

// SetValue inserts or replaces the misc blob under key.
func (r *PostgresRepository) SetValue(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO misc (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpsertBuildStatus stores the reported progress for one
// (host, account, project) triple, replacing any earlier report.
func (r *PostgresRepository) UpsertBuildStatus(ctx context.Context, host string, accountID, projectID int64, progress int) error {
	query := `
		INSERT INTO build_status (host, account_id, project_id, progress)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (host, account_id, project_id)
		DO UPDATE SET progress = EXCLUDED.progress`
	if _, err := r.db.ExecContext(ctx, query, host, accountID, projectID, progress); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetBuildStatus returns the stored progress, or common.ErrorNotFound when
// no report exists; the facade converts that into the conventional default.
func (r *PostgresRepository) GetBuildStatus(ctx context.Context, host string, accountID, projectID int64) (int, error) {
	query := `SELECT progress FROM build_status
		WHERE host = $1 AND account_id = $2 AND project_id = $3`

	var progress int
	if err := r.db.QueryRowContext(ctx, query, host, accountID, projectID).Scan(&progress); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return progress, nil
}

// GetBackpack returns the backpack blob stored under id.
func (r *PostgresRepository) GetBackpack(ctx context.Context, id string) (string, error) {
	query := `SELECT content FROM backpack WHERE id = $1`

	var content string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return content, nil
}

// UpsertBackpack inserts or replaces the backpack blob.
func (r *PostgresRepository) UpsertBackpack(ctx context.Context, id, content string) error {
	query := `
		INSERT INTO backpack (id, content) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content`
	if _, err := r.db.ExecContext(ctx, query, id, content); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpsertIPAddress records the last address seen for key (last writer wins).
func (r *PostgresRepository) UpsertIPAddress(ctx context.Context, key, address string) error {
	query := `
		INSERT INTO ip_address (key, address) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET address = EXCLUDED.address`
	if _, err := r.db.ExecContext(ctx, query, key, address); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetIPAddress returns the address stored under key.
func (r *PostgresRepository) GetIPAddress(ctx context.Context, key string) (string, error) {
	query := `SELECT address FROM ip_address WHERE key = $1`

	var address string
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return address, nil
}

// IsWhitelisted reports whether the email is on the access whitelist,
// compared case-insensitively.
func (r *PostgresRepository) IsWhitelisted(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM whitelist WHERE lower(email) = lower($1))`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// InsertFeedback appends a feedback record.
func (r *PostgresRepository) InsertFeedback(ctx context.Context, f *models.Feedback) error {
	query := `
		INSERT INTO feedback (notes, found_in, fault_data, comments, datestamp, email, project_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		f.Notes, f.FoundIn, f.FaultData, f.Comments, f.Datestamp, f.Email, f.ProjectID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// InsertCorruptionRecord appends a corruption report.
func (r *PostgresRepository) InsertCorruptionRecord(ctx context.Context, rec *models.CorruptionRecord) error {
	query := `
		INSERT INTO corruption_report (account_id, project_id, file_name, message)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query,
		rec.AccountID, rec.ProjectID, rec.FileName, rec.Message); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
