// Package nonces provides PostgreSQL-backed storage for device-pairing
// nonces and password-reset requests. Both are short-lived: expired rows are
// removed by sweeps an external scheduler triggers, never by the store itself.
package nonces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/server/models"
)

// PostgresRepository implements nonce and password-reset storage over a
// dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertNonce stores the token, replacing the whole row and refreshing the
// timestamp if the token already exists (the negligible collision case).
func (r *PostgresRepository) UpsertNonce(ctx context.Context, nonce string, accountID, projectID int64) error {
	query := `
		INSERT INTO nonce (nonce, account_id, project_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (nonce)
		DO UPDATE SET account_id = EXCLUDED.account_id,
			project_id = EXCLUDED.project_id,
			created_at = now()`
	if _, err := r.db.ExecContext(ctx, query, nonce, accountID, projectID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetNonce looks the token up, ignoring case.
func (r *PostgresRepository) GetNonce(ctx context.Context, nonce string) (*models.Nonce, error) {
	query := `SELECT nonce, account_id, project_id, created_at FROM nonce
		WHERE lower(nonce) = lower($1)`

	n := &models.Nonce{}
	err := r.db.QueryRowContext(ctx, query, nonce).
		Scan(&n.Nonce, &n.AccountID, &n.ProjectID, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// DeleteNoncesBefore removes rows strictly older than cutoff and reports how
// many were swept. A row created exactly at the cutoff survives.
func (r *PostgresRepository) DeleteNoncesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM nonce WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// CreatePWData stores a password-reset request under its UUID.
func (r *PostgresRepository) CreatePWData(ctx context.Context, id, email string) error {
	query := `INSERT INTO pw_data (id, email) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, id, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetPWData returns the password-reset request stored under id.
func (r *PostgresRepository) GetPWData(ctx context.Context, id string) (*models.PWData, error) {
	query := `SELECT id, email, created_at FROM pw_data WHERE id = $1`

	p := &models.PWData{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// DeletePWDataBefore removes reset requests strictly older than cutoff.
func (r *PostgresRepository) DeletePWDataBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM pw_data WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
