// Package accounts provides the PostgreSQL-backed account repository.
// Email lookups are case-insensitive; uniqueness is enforced by a unique
// index on lower(email), so two servers racing to insert the same email
// will have one fail on the constraint.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/server/models"
)

const accountColumns = `id, email, name, link, email_frequency, tos_accepted,
	type, session_id, COALESCE(password, ''), settings, backpack_id, visited_at`

// PostgresRepository implements account storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a fresh account row with column defaults (zero email
// frequency, tos not accepted, non-admin type, no password) and returns the
// stored row.
func (r *PostgresRepository) Create(ctx context.Context, email, name string) (*models.Account, error) {
	query := `
		INSERT INTO account (email, name)
		VALUES ($1, $2)
		RETURNING ` + accountColumns

	return r.scanAccount(r.db.QueryRowContext(ctx, query, email, name))
}

// GetByID returns the account with the given internal id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE id = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks an account up by email, ignoring case.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE lower(email) = lower($1)`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, email))
}

// SetField updates one column of an account row. The field must belong to
// the closed models.AccountField set. An empty password is stored as NULL.
// Zero rows affected yields common.ErrorNotFound.
func (r *PostgresRepository) SetField(ctx context.Context, id int64, field models.AccountField, value any) error {
	column, err := columnFor(field)
	if err != nil {
		return err
	}

	if field == models.AccountPassword {
		if s, ok := value.(string); ok && s == "" {
			value = nil
		}
	}

	query := fmt.Sprintf(`UPDATE account SET %s = $2 WHERE id = $1`, column)
	res, err := r.db.ExecContext(ctx, query, id, value)
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

// List returns up to limit accounts with id > afterID, ordered by id.
func (r *PostgresRepository) List(ctx context.Context, afterID int64, limit int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE id > $1 ORDER BY id LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return r.collectAccounts(rows)
}

// SearchByEmailPrefix returns accounts whose email starts with prefix,
// compared case-insensitively.
func (r *PostgresRepository) SearchByEmailPrefix(ctx context.Context, prefix string, limit int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM account WHERE lower(email) LIKE lower($1) || '%' ORDER BY email LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return r.collectAccounts(rows)
}

func (r *PostgresRepository) scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Link, &a.EmailFrequency, &a.TosAccepted,
		&a.Type, &a.SessionID, &a.Password, &a.Settings, &a.BackpackID, &a.VisitedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) collectAccounts(rows *sql.Rows) ([]*models.Account, error) {
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a := &models.Account{}
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.Link, &a.EmailFrequency, &a.TosAccepted,
			&a.Type, &a.SessionID, &a.Password, &a.Settings, &a.BackpackID, &a.VisitedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func columnFor(field models.AccountField) (string, error) {
	switch field {
	case models.AccountEmail, models.AccountName, models.AccountLink,
		models.AccountEmailFrequency, models.AccountTosAccepted,
		models.AccountSessionID, models.AccountPassword,
		models.AccountSettings, models.AccountBackpackID,
		models.AccountVisitedAt:
		return string(field), nil
	default:
		return "", fmt.Errorf("%w: unknown account field %q", common.ErrorBadArgument, field)
	}
}
