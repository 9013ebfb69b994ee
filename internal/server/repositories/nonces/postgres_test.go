package nonces

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blockstudio/server/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestUpsertNonce_RefreshesOnConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+nonce.*ON\s+CONFLICT\s*\(nonce\)\s*DO\s+UPDATE\s+SET\s+account_id\s*=\s*EXCLUDED\.account_id,.*created_at\s*=\s*now\(\)`
	mock.ExpectExec(q).
		WithArgs("ab12cd34", int64(7), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpsertNonce(context.Background(), "ab12cd34", 7, 11); err != nil {
		t.Fatalf("UpsertNonce error: %v", err)
	}
}

func TestGetNonce_CaseInsensitive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"nonce", "account_id", "project_id", "created_at"}).
		AddRow("ab12cd34", int64(7), int64(11), time.Now())

	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+nonce\s+WHERE\s+lower\(nonce\)\s*=\s*lower\(\$1\)`).
		WithArgs("AB12CD34").
		WillReturnRows(rows)

	got, err := repo.GetNonce(context.Background(), "AB12CD34")
	if err != nil {
		t.Fatalf("GetNonce error: %v", err)
	}
	if got.AccountID != 7 || got.ProjectID != 11 {
		t.Fatalf("unexpected nonce: %+v", got)
	}
}

func TestDeleteNoncesBefore_StrictCutoff(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Now().Add(-3 * time.Hour)
	mock.ExpectExec(`DELETE\s+FROM\s+nonce\s+WHERE\s+created_at\s*<\s*\$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteNoncesBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteNoncesBefore error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 swept rows, got %d", n)
	}
}

func TestGetPWData_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id,\s*email,\s*created_at\s+FROM\s+pw_data`).
		WithArgs("no-such-uuid").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetPWData(context.Background(), "no-such-uuid")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestCreatePWData(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+pw_data\s*\(id,\s*email\)\s*VALUES\s*\(\$1,\s*\$2\)`).
		WithArgs("uuid-1", "alice@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.CreatePWData(context.Background(), "uuid-1", "alice@example.com"); err != nil {
		t.Fatalf("CreatePWData error: %v", err)
	}
}
