package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/server/models"
)

var accountRows = []string{"id", "email", "name", "link", "email_frequency", "tos_accepted",
	"type", "session_id", "password", "settings", "backpack_id", "visited_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleRow() *sqlmock.Rows {
	return sqlmock.NewRows(accountRows).
		AddRow(int64(7), "Alice@Example.com", "alice", "", 0, false, 0, "", "", "", "", time.Now())
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+account\s*\(email,\s*name\)\s*VALUES\s*\(\$1,\s*\$2\)\s*RETURNING`

	mock.ExpectQuery(q).
		WithArgs("alice@example.com", "alice").
		WillReturnRows(sampleRow())

	got, err := repo.Create(context.Background(), "alice@example.com", "alice")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 7 || got.Name != "alice" {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+account`).
		WithArgs("alice@example.com", "alice").
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	_, err := repo.Create(context.Background(), "alice@example.com", "alice")
	if err == nil || !regexp.MustCompile(`db error: .*unique constraint`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_CaseInsensitive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+.*FROM\s+account\s+WHERE\s+lower\(email\)\s*=\s*lower\(\$1\)`

	mock.ExpectQuery(q).WithArgs("ALICE@example.COM").WillReturnRows(sampleRow())

	got, err := repo.GetByEmail(context.Background(), "ALICE@example.COM")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != 7 {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+.*FROM\s+account`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestSetField_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `UPDATE\s+account\s+SET\s+name\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1`
	mock.ExpectExec(q).WithArgs(int64(7), "bob").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetField(context.Background(), 7, models.AccountName, "bob"); err != nil {
		t.Fatalf("SetField error: %v", err)
	}
}

func TestSetField_ZeroRowsIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+account\s+SET\s+link`).
		WithArgs(int64(99), "http://x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetField(context.Background(), 99, models.AccountLink, "http://x")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestSetField_EmptyPasswordStoredAsNull(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+account\s+SET\s+password`).
		WithArgs(int64(7), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetField(context.Background(), 7, models.AccountPassword, ""); err != nil {
		t.Fatalf("SetField error: %v", err)
	}
}

func TestSetField_UnknownFieldRejected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	err := repo.SetField(context.Background(), 7, models.AccountField("id; DROP TABLE account"), 1)
	if !errors.Is(err, common.ErrorBadArgument) {
		t.Fatalf("want common.ErrorBadArgument, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statement should have run: %v", err)
	}
}

func TestSearchByEmailPrefix(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(accountRows).
		AddRow(int64(1), "a@x.com", "a", "", 0, false, 0, "", "", "", "", time.Now()).
		AddRow(int64(2), "ab@x.com", "ab", "", 0, false, 0, "", "", "", "", time.Now())

	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+account\s+WHERE\s+lower\(email\)\s+LIKE`).
		WithArgs("a", 10).
		WillReturnRows(rows)

	got, err := repo.SearchByEmailPrefix(context.Background(), "a", 10)
	if err != nil {
		t.Fatalf("SearchByEmailPrefix error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(got))
	}
}
