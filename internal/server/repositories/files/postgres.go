// Package files provides the PostgreSQL-backed repositories for project
// files, per-user files, and ephemeral temp files.
//
// Batch add/remove is best effort: inserts use ON CONFLICT DO NOTHING,
// deletes use a name-list match, and per-row outcomes are not inspected.
// Upserts replace the whole row, so concurrent writers race and the last
// writer wins.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/server/models"
)

// PostgresRepository implements file storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// AddProjectFiles inserts empty file rows for each name, skipping names that
// already exist. An empty name list is a no-op.
func (r *PostgresRepository) AddProjectFiles(ctx context.Context, projectID, accountID int64, role models.FileRole, fileNames []string) error {
	if len(fileNames) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO project_file (project_id, account_id, file_name, role) VALUES `)
	args := []any{projectID, accountID, string(role)}
	for i, name := range fileNames {
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, name)
		fmt.Fprintf(&sb, "($1, $2, $%d, $3)", len(args))
	}
	sb.WriteString(` ON CONFLICT (project_id, account_id, file_name) DO NOTHING`)

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RemoveProjectFiles deletes the named file rows. An empty name list is a
// no-op; absent names are ignored.
func (r *PostgresRepository) RemoveProjectFiles(ctx context.Context, projectID, accountID int64, fileNames []string) error {
	if len(fileNames) == 0 {
		return nil
	}

	query := `DELETE FROM project_file
		WHERE project_id = $1 AND account_id = $2 AND file_name = ANY($3)`
	if _, err := r.db.ExecContext(ctx, query, projectID, accountID, nameArray(fileNames)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListProjectFiles returns the file names of the given role.
func (r *PostgresRepository) ListProjectFiles(ctx context.Context, projectID, accountID int64, role models.FileRole) ([]string, error) {
	query := `SELECT file_name FROM project_file
		WHERE project_id = $1 AND account_id = $2 AND role = $3 ORDER BY file_name`
	rows, err := r.db.QueryContext(ctx, query, projectID, accountID, string(role))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectNames(rows)
}

// GetProjectFile returns one file row including content.
func (r *PostgresRepository) GetProjectFile(ctx context.Context, projectID, accountID int64, fileName string) (*models.ProjectFile, error) {
	query := `SELECT project_id, account_id, file_name, role, content FROM project_file
		WHERE project_id = $1 AND account_id = $2 AND file_name = $3`

	f := &models.ProjectFile{}
	err := r.db.QueryRowContext(ctx, query, projectID, accountID, fileName).
		Scan(&f.ProjectID, &f.AccountID, &f.FileName, &f.Role, &f.Content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// GetAllProjectFiles returns every file row of the given role, content
// included. Used by the zip exporter inside one transaction.
func (r *PostgresRepository) GetAllProjectFiles(ctx context.Context, projectID, accountID int64, role models.FileRole) ([]*models.ProjectFile, error) {
	query := `SELECT project_id, account_id, file_name, role, content FROM project_file
		WHERE project_id = $1 AND account_id = $2 AND role = $3 ORDER BY file_name`
	rows, err := r.db.QueryContext(ctx, query, projectID, accountID, string(role))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ProjectFile
	for rows.Next() {
		f := &models.ProjectFile{}
		if err := rows.Scan(&f.ProjectID, &f.AccountID, &f.FileName, &f.Role, &f.Content); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// InsertProjectFile inserts a new file row; a conflicting row is a db error.
func (r *PostgresRepository) InsertProjectFile(ctx context.Context, f *models.ProjectFile) error {
	query := `INSERT INTO project_file (project_id, account_id, file_name, role, content)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query,
		f.ProjectID, f.AccountID, f.FileName, string(f.Role), f.Content); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpsertProjectFile inserts or fully replaces the file row (last writer wins).
func (r *PostgresRepository) UpsertProjectFile(ctx context.Context, f *models.ProjectFile) error {
	query := `
		INSERT INTO project_file (project_id, account_id, file_name, role, content)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, account_id, file_name)
		DO UPDATE SET role = EXCLUDED.role, content = EXCLUDED.content`
	if _, err := r.db.ExecContext(ctx, query,
		f.ProjectID, f.AccountID, f.FileName, string(f.Role), f.Content); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateProjectFileContent replaces the content of an existing row only.
// Zero rows affected yields common.ErrorNotFound so the caller can apply
// the legacy auto-create shim.
func (r *PostgresRepository) UpdateProjectFileContent(ctx context.Context, projectID, accountID int64, fileName string, content []byte) error {
	query := `UPDATE project_file SET content = $4
		WHERE project_id = $1 AND account_id = $2 AND file_name = $3`
	res, err := r.db.ExecContext(ctx, query, projectID, accountID, fileName, content)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// DeleteProjectFile removes one file row. Zero rows yields common.ErrorNotFound.
func (r *PostgresRepository) DeleteProjectFile(ctx context.Context, projectID, accountID int64, fileName string) error {
	query := `DELETE FROM project_file
		WHERE project_id = $1 AND account_id = $2 AND file_name = $3`
	res, err := r.db.ExecContext(ctx, query, projectID, accountID, fileName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// AddUserFiles inserts empty per-user file rows, skipping existing names, so
// repeated calls with overlapping lists stay idempotent.
func (r *PostgresRepository) AddUserFiles(ctx context.Context, accountID int64, fileNames []string) error {
	if len(fileNames) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO user_file (account_id, file_name) VALUES `)
	args := []any{accountID}
	for i, name := range fileNames {
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, name)
		fmt.Fprintf(&sb, "($1, $%d)", len(args))
	}
	sb.WriteString(` ON CONFLICT (account_id, file_name) DO NOTHING`)

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListUserFiles returns the names of all files stored for the account.
func (r *PostgresRepository) ListUserFiles(ctx context.Context, accountID int64) ([]string, error) {
	query := `SELECT file_name FROM user_file WHERE account_id = $1 ORDER BY file_name`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collectNames(rows)
}

// GetUserFile returns one per-user file row including content.
func (r *PostgresRepository) GetUserFile(ctx context.Context, accountID int64, fileName string) (*models.UserFile, error) {
	query := `SELECT account_id, file_name, content FROM user_file
		WHERE account_id = $1 AND file_name = $2`

	f := &models.UserFile{}
	err := r.db.QueryRowContext(ctx, query, accountID, fileName).
		Scan(&f.AccountID, &f.FileName, &f.Content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// UpsertUserFile inserts or fully replaces the per-user file row.
func (r *PostgresRepository) UpsertUserFile(ctx context.Context, f *models.UserFile) error {
	query := `
		INSERT INTO user_file (account_id, file_name, content)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, file_name)
		DO UPDATE SET content = EXCLUDED.content`
	if _, err := r.db.ExecContext(ctx, query, f.AccountID, f.FileName, f.Content); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteUserFile removes one per-user file row. Zero rows yields
// common.ErrorNotFound.
func (r *PostgresRepository) DeleteUserFile(ctx context.Context, accountID int64, fileName string) error {
	query := `DELETE FROM user_file WHERE account_id = $1 AND file_name = $2`
	res, err := r.db.ExecContext(ctx, query, accountID, fileName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// InsertTempFile stores an ephemeral blob and returns its generated id.
func (r *PostgresRepository) InsertTempFile(ctx context.Context, content []byte) (int64, error) {
	query := `INSERT INTO temp_file (content) VALUES ($1) RETURNING id`

	var id int64
	if err := r.db.QueryRowContext(ctx, query, content).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// GetTempFile returns the blob stored under the internal temp id.
func (r *PostgresRepository) GetTempFile(ctx context.Context, id int64) ([]byte, error) {
	query := `SELECT content FROM temp_file WHERE id = $1`

	var content []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return content, nil
}

// DeleteTempFile removes the temp row; deleting an absent row is a no-op.
func (r *PostgresRepository) DeleteTempFile(ctx context.Context, id int64) error {
	query := `DELETE FROM temp_file WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func collectNames(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var result []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result = append(result, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// nameArray renders a text[] literal for ANY() matching; pgx binds it
// without needing the pq.Array helper.
func nameArray(names []string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = `"` + strings.ReplaceAll(strings.ReplaceAll(n, `\`, `\\`), `"`, `\"`) + `"`
	}
	return "{" + strings.Join(escaped, ",") + "}"
}
