// Package projects provides the PostgreSQL-backed project repository.
// Deleting a project cascades to its files via the schema's foreign key.
// Every mutating operation refreshes modified_at and returns the value the
// database actually stored, so callers never see a locally computed stamp.
package projects

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

const projectColumns = `id, account_id, name, type, settings, history,
	created_at, modified_at, gallery_id, attribution_id`

// PostgresRepository implements project storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a project row and returns the stored row including the
// generated id and the database-assigned timestamps.
func (r *PostgresRepository) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	query := `
		INSERT INTO project (account_id, name, type, settings, history, gallery_id, attribution_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + projectColumns

	return r.scanProject(r.db.QueryRowContext(ctx, query,
		p.AccountID, p.Name, p.Type, p.Settings, p.History, p.GalleryID, p.AttributionID))
}

// Get returns the project only when it belongs to accountID.
func (r *PostgresRepository) Get(ctx context.Context, accountID, projectID int64) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM project WHERE id = $1 AND account_id = $2`
	return r.scanProject(r.db.QueryRowContext(ctx, query, projectID, accountID))
}

// ListIDs returns the ids of all projects owned by accountID.
func (r *PostgresRepository) ListIDs(ctx context.Context, accountID int64) ([]int64, error) {
	query := `SELECT id FROM project WHERE account_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the project scoped to its owner. Deleting a project that
// does not belong to accountID affects zero rows and is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, accountID, projectID int64) error {
	query := `DELETE FROM project WHERE id = $1 AND account_id = $2`
	if _, err := r.db.ExecContext(ctx, query, projectID, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SetField updates one column of a project row and refreshes modified_at in
// the same statement, returning the stored stamp. Zero rows affected yields
// common.ErrorNotFound.
func (r *PostgresRepository) SetField(ctx context.Context, projectID int64, field models.ProjectField, value any) (time.Time, error) {
	column, err := columnFor(field)
	if err != nil {
		return time.Time{}, err
	}

	query := fmt.Sprintf(
		`UPDATE project SET %s = $2, modified_at = now() WHERE id = $1 RETURNING modified_at`, column)

	var modified time.Time
	if err := r.db.QueryRowContext(ctx, query, projectID, value).Scan(&modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, common.ErrorNotFound
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return modified, nil
}

// TouchModified refreshes modified_at and returns the stored stamp.
func (r *PostgresRepository) TouchModified(ctx context.Context, projectID int64) (time.Time, error) {
	query := `UPDATE project SET modified_at = now() WHERE id = $1 RETURNING modified_at`

	var modified time.Time
	if err := r.db.QueryRowContext(ctx, query, projectID).Scan(&modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, common.ErrorNotFound
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return modified, nil
}

func (r *PostgresRepository) scanProject(row *sql.Row) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(&p.ID, &p.AccountID, &p.Name, &p.Type, &p.Settings, &p.History,
		&p.CreatedAt, &p.ModifiedAt, &p.GalleryID, &p.AttributionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func columnFor(field models.ProjectField) (string, error) {
	switch field {
	case models.ProjectName, models.ProjectSettings, models.ProjectHistory,
		models.ProjectGalleryID, models.ProjectAttributionID:
		return string(field), nil
	default:
		return "", fmt.Errorf("%w: unknown project field %q", common.ErrorBadArgument, field)
	}
}
