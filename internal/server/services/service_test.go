package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/logging"
	"github.com/blockstudio/server/internal/server/config"
	"github.com/blockstudio/server/internal/server/models"
	"github.com/blockstudio/server/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

func newServiceWithMock(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewService(db, repomanager.NewPostgresManager(), log, cfg), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUploadRawFile_YailAutoCreated(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	stamp := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE\s+project_file\s+SET\s+content`).
		WithArgs(int64(11), int64(7), "Screen1.yail", []byte("(code)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT\s+INTO\s+project_file`).
		WithArgs(int64(11), int64(7), "Screen1.yail", "source", []byte("(code)")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`UPDATE\s+project\s+SET\s+modified_at\s*=\s*now\(\)`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"modified_at"}).AddRow(stamp))
	mock.ExpectCommit()

	got, err := svc.UploadRawFile(context.Background(), "7", 11, "Screen1.yail", []byte("(code)"))
	if err != nil {
		t.Fatalf("UploadRawFile error: %v", err)
	}
	if !got.Equal(stamp) {
		t.Fatalf("expected stored stamp %v, got %v", stamp, got)
	}
	expectationsMet(t, mock)
}

func TestUploadRawFile_MissingRowIsFatal(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE\s+project_file\s+SET\s+content`).
		WithArgs(int64(11), int64(7), "Screen1.txt", []byte("hi")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.UploadRawFile(context.Background(), "7", 11, "Screen1.txt", []byte("hi"))
	if err == nil {
		t.Fatal("expected error for missing non-shim file")
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected fatal *Error, got %T: %v", err, err)
	}
	if !errors.Is(err, common.ErrorUnknown) {
		t.Fatalf("zero-row write must collapse to ErrorUnknown, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUploadRawFileForce_UpsertsWholeRow(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	stamp := time.Date(2026, 4, 2, 9, 1, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT\s+INTO\s+project_file.*ON\s+CONFLICT.*DO\s+UPDATE`).
		WithArgs(int64(11), int64(7), "Screen1.txt", "source", []byte("hi")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`UPDATE\s+project\s+SET\s+modified_at`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"modified_at"}).AddRow(stamp))
	mock.ExpectCommit()

	_, err := svc.UploadRawFileForce(context.Background(), "7", 11, "Screen1.txt", []byte("hi"))
	if err != nil {
		t.Fatalf("UploadRawFileForce error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestAddSourceFiles_EmptyListSkipsDatabase(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	if err := svc.AddSourceFilesToProject(context.Background(), "7", 11); err != nil {
		t.Fatalf("empty add must be a no-op, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestAddSourceFiles_TouchesProject(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+project_file.*DO\s+NOTHING`).
		WithArgs(int64(11), int64(7), "source", "Screen1.scm", "Screen1.bky").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`UPDATE\s+project\s+SET\s+modified_at`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"modified_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	err := svc.AddSourceFilesToProject(context.Background(), "7", 11, "Screen1.scm", "Screen1.bky")
	if err != nil {
		t.Fatalf("AddSourceFilesToProject error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestOpenTempFile_BadHandleRejectedBeforeDatabase(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	_, err := svc.OpenTempFile(context.Background(), "assets/cat.png")
	if !errors.Is(err, common.ErrorBadArgument) {
		t.Fatalf("want common.ErrorBadArgument, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUploadTempFile_ReturnsPrefixedHandle(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT\s+INTO\s+temp_file`).
		WithArgs([]byte("blob")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(255)))
	mock.ExpectCommit()

	handle, err := svc.UploadTempFile(context.Background(), []byte("blob"))
	if err != nil {
		t.Fatalf("UploadTempFile error: %v", err)
	}
	if handle != "__TEMP__ff" {
		t.Fatalf("unexpected handle %q", handle)
	}
	expectationsMet(t, mock)
}

func TestGetBuildStatus_AbsentDefaultsTo50(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+progress\s+FROM\s+build_status`).
		WithArgs("buildserver-1", int64(7), int64(11)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	got, err := svc.GetBuildStatus(context.Background(), "buildserver-1", "7", 11)
	if err != nil {
		t.Fatalf("GetBuildStatus error: %v", err)
	}
	if got != DefaultBuildProgress {
		t.Fatalf("want default %d, got %d", DefaultBuildProgress, got)
	}
	expectationsMet(t, mock)
}

func TestGetBackpack_AbsentIsEmptyList(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+content\s+FROM\s+backpack`).
		WithArgs("bp-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	got, err := svc.GetBackpack(context.Background(), "bp-1")
	if err != nil {
		t.Fatalf("GetBackpack error: %v", err)
	}
	if got != "[]" {
		t.Fatalf("want empty backpack, got %q", got)
	}
	expectationsMet(t, mock)
}

func TestGetCurrentMotd_SelfHealsMissingRow(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+value\s+FROM\s+misc`).
		WithArgs("motd").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT\s+INTO\s+misc`).
		WithArgs("motd", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	motd, err := svc.GetCurrentMotd(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentMotd error: %v", err)
	}
	if motd.Captain == "" || motd.Content == "" {
		t.Fatalf("expected default motd, got %+v", motd)
	}
	expectationsMet(t, mock)
}

func TestGetCurrentMotd_SelfHealsCorruptRow(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+value\s+FROM\s+misc`).
		WithArgs("motd").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("{not json"))
	mock.ExpectExec(`INSERT\s+INTO\s+misc`).
		WithArgs("motd", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	motd, err := svc.GetCurrentMotd(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentMotd error: %v", err)
	}
	if motd.Captain != defaultMotd().Captain {
		t.Fatalf("expected default motd after reset, got %+v", motd)
	}
	expectationsMet(t, mock)
}

func TestCleanUpNonces_ReportsSweptCount(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE\s+FROM\s+nonce\s+WHERE\s+created_at\s*<\s*\$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := svc.CleanUpNonces(context.Background())
	if err != nil {
		t.Fatalf("CleanUpNonces error: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3 swept, got %d", n)
	}
	expectationsMet(t, mock)
}

func TestSetUserField_ZeroRowsCollapsesToUnknown(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE\s+account\s+SET\s+name\s*=\s*\$2`).
		WithArgs(int64(404), "Ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := svc.SetUserField(context.Background(), "194", models.AccountName, "Ghost")
	if !errors.Is(err, common.ErrorUnknown) {
		t.Fatalf("zero-row update must collapse to ErrorUnknown, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestSetUserField_MalformedIDRejected(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	err := svc.SetUserField(context.Background(), "NOT-HEX", models.AccountName, "x")
	if !errors.Is(err, common.ErrorBadArgument) {
		t.Fatalf("want common.ErrorBadArgument, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestCreateProject_RollsBackWhenFileInsertFails(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	now := time.Now()
	projectRow := sqlmock.NewRows([]string{"id", "account_id", "name", "type", "settings", "history",
		"created_at", "modified_at", "gallery_id", "attribution_id"}).
		AddRow(int64(11), int64(7), "HelloPurr", "YoungAndroid", "{}", "", now, now, int64(-1), int64(-1))

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT\s+INTO\s+project\s*\(`).
		WillReturnRows(projectRow)
	mock.ExpectExec(`INSERT\s+INTO\s+project_file`).
		WillReturnError(errors.New("disk on fire"))
	mock.ExpectRollback()

	_, err := svc.CreateProject(context.Background(), "7",
		&models.Project{Name: "HelloPurr", Type: "YoungAndroid", Settings: "{}"},
		[]*models.ProjectFile{{FileName: "Screen1.scm", Content: []byte("{}")}})
	if err == nil {
		t.Fatal("expected creation to fail and roll back")
	}
	expectationsMet(t, mock)
}

func TestCreateProject_EmptyNameRejected(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	_, err := svc.CreateProject(context.Background(), "7", &models.Project{}, nil)
	if !errors.Is(err, common.ErrorBadArgument) {
		t.Fatalf("want common.ErrorBadArgument, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestLogin_WrongPasswordIsUnauthorized(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	now := time.Now()
	accountRow := sqlmock.NewRows([]string{"id", "email", "name", "link", "email_frequency",
		"tos_accepted", "type", "session_id", "password", "settings", "backpack_id", "visited_at"}).
		AddRow(int64(7), "kitty@example.com", "kitty", "", 0, true, 0, "", string(hash), "{}", "", now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+.*FROM\s+account\s+WHERE\s+lower\(email\)`).
		WithArgs("kitty@example.com").
		WillReturnRows(accountRow)
	mock.ExpectRollback()

	_, _, err = svc.Login(context.Background(), "kitty@example.com", "wrong")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("want common.ErrorUnauthorized, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestLogin_UnknownEmailIsUnauthorized(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+.*FROM\s+account\s+WHERE\s+lower\(email\)`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := svc.Login(context.Background(), "ghost@example.com", "pw")
	if !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("unknown email must look like bad credentials, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestGetUser_MissingIsPlainNotFound(t *testing.T) {
	svc, mock := newServiceWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+.*FROM\s+account\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.GetUser(context.Background(), "194")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
	var se *Error
	if errors.As(err, &se) {
		t.Fatalf("read miss must not be wrapped as fatal, got %v", err)
	}
	expectationsMet(t, mock)
}
