package files

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestAddProjectFiles_EmptyListIsNoop(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	if err := repo.AddProjectFiles(context.Background(), 11, 7, models.RoleSource, nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statement should have run: %v", err)
	}
}

func TestAddProjectFiles_BatchInsertOnConflictIgnore(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+project_file\s*\(project_id,\s*account_id,\s*file_name,\s*role\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$4,\s*\$3\),\s*\(\$1,\s*\$2,\s*\$5,\s*\$3\)\s*ON\s+CONFLICT.*DO\s+NOTHING`
	mock.ExpectExec(q).
		WithArgs(int64(11), int64(7), "source", "Screen1.scm", "Screen1.bky").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.AddProjectFiles(context.Background(), 11, 7, models.RoleSource,
		[]string{"Screen1.scm", "Screen1.bky"})
	if err != nil {
		t.Fatalf("AddProjectFiles error: %v", err)
	}
}

func TestRemoveProjectFiles_EmptyListIsNoop(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	if err := repo.RemoveProjectFiles(context.Background(), 11, 7, []string{}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statement should have run: %v", err)
	}
}

func TestUpdateProjectFileContent_ZeroRowsIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+project_file\s+SET\s+content`).
		WithArgs(int64(11), int64(7), "Screen1.txt", []byte("x")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProjectFileContent(context.Background(), 11, 7, "Screen1.txt", []byte("x"))
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestUpsertProjectFile_ReplacesWholeRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+project_file.*ON\s+CONFLICT\s*\(project_id,\s*account_id,\s*file_name\)\s*DO\s+UPDATE\s+SET\s+role\s*=\s*EXCLUDED\.role,\s*content\s*=\s*EXCLUDED\.content`
	mock.ExpectExec(q).
		WithArgs(int64(11), int64(7), "Screen1.yail", "source", []byte("code")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	f := &models.ProjectFile{ProjectID: 11, AccountID: 7, FileName: "Screen1.yail",
		Role: models.RoleSource, Content: []byte("code")}
	if err := repo.UpsertProjectFile(context.Background(), f); err != nil {
		t.Fatalf("UpsertProjectFile error: %v", err)
	}
}

func TestGetProjectFile_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+project_id,.*FROM\s+project_file`).
		WithArgs(int64(11), int64(7), "missing.txt").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetProjectFile(context.Background(), 11, 7, "missing.txt")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestAddUserFiles_Idempotent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+user_file\s*\(account_id,\s*file_name\)\s*VALUES\s*\(\$1,\s*\$2\),\s*\(\$1,\s*\$3\)\s*ON\s+CONFLICT.*DO\s+NOTHING`
	mock.ExpectExec(q).
		WithArgs(int64(7), "android.keystore", "backpack.json").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).
		WithArgs(int64(7), "android.keystore", "backpack.json").
		WillReturnResult(sqlmock.NewResult(0, 0))

	names := []string{"android.keystore", "backpack.json"}
	if err := repo.AddUserFiles(context.Background(), 7, names); err != nil {
		t.Fatalf("first AddUserFiles error: %v", err)
	}
	if err := repo.AddUserFiles(context.Background(), 7, names); err != nil {
		t.Fatalf("second AddUserFiles error: %v", err)
	}
}

func TestTempFile_InsertReturnsID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+temp_file\s*\(content\)\s*VALUES\s*\(\$1\)\s*RETURNING\s+id`).
		WithArgs([]byte("blob")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))

	id, err := repo.InsertTempFile(context.Background(), []byte("blob"))
	if err != nil {
		t.Fatalf("InsertTempFile error: %v", err)
	}
	if id != 31 {
		t.Fatalf("expected id 31, got %d", id)
	}
}

func TestGetTempFile_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+content\s+FROM\s+temp_file`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetTempFile(context.Background(), 404)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestNameArray_Escaping(t *testing.T) {
	got := nameArray([]string{`a.txt`, `we"ird\name`})
	want := `{"a.txt","we\"ird\\name"}`
	if got != want {
		t.Fatalf("nameArray mismatch: got %s want %s", got, want)
	}
}
