package files

import (
	"context"

	"github.com/blockstudio/server/internal/server/models"
)

type Repository interface {
	// Project files.
	AddProjectFiles(ctx context.Context, projectID, accountID int64, role models.FileRole, fileNames []string) error
	RemoveProjectFiles(ctx context.Context, projectID, accountID int64, fileNames []string) error
	ListProjectFiles(ctx context.Context, projectID, accountID int64, role models.FileRole) ([]string, error)
	GetProjectFile(ctx context.Context, projectID, accountID int64, fileName string) (*models.ProjectFile, error)
	GetAllProjectFiles(ctx context.Context, projectID, accountID int64, role models.FileRole) ([]*models.ProjectFile, error)
	InsertProjectFile(ctx context.Context, f *models.ProjectFile) error
	UpsertProjectFile(ctx context.Context, f *models.ProjectFile) error
	UpdateProjectFileContent(ctx context.Context, projectID, accountID int64, fileName string, content []byte) error
	DeleteProjectFile(ctx context.Context, projectID, accountID int64, fileName string) error

	// User files.
	AddUserFiles(ctx context.Context, accountID int64, fileNames []string) error
	ListUserFiles(ctx context.Context, accountID int64) ([]string, error)
	GetUserFile(ctx context.Context, accountID int64, fileName string) (*models.UserFile, error)
	UpsertUserFile(ctx context.Context, f *models.UserFile) error
	DeleteUserFile(ctx context.Context, accountID int64, fileName string) error

	// Temp files.
	InsertTempFile(ctx context.Context, content []byte) (int64, error)
	GetTempFile(ctx context.Context, id int64) ([]byte, error)
	DeleteTempFile(ctx context.Context, id int64) error
}
