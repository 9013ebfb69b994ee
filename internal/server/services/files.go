package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/hexid"
	"github.com/blockstudio/server/internal/server/models"
)

// legacyAutoCreate reports whether a missing row may be created on upload.
// Old clients migrated projects without registering generated .yail sources
// or .png screenshots first; those two suffixes get an auto-create shim.
// This is not a general upsert.
func legacyAutoCreate(fileName string) bool {
	return strings.HasSuffix(fileName, ".yail") || strings.HasSuffix(fileName, ".png")
}

// UploadFile stores text content for an existing project file and returns
// the project's refreshed modification stamp as read back from the database.
func (s *Service) UploadFile(ctx context.Context, userID string, projectID int64, fileName, content string) (time.Time, error) {
	return s.UploadRawFile(ctx, userID, projectID, fileName, []byte(content))
}

// UploadRawFile stores binary content for an existing project file. When the
// row is missing the legacy shim applies: .yail/.png rows are created
// silently, anything else takes the indistinct fatal path. On success the
// project's modification stamp is refreshed and returned, read back from the
// database so the caller sees the authoritative value.
func (s *Service) UploadRawFile(ctx context.Context, userID string, projectID int64, fileName string, content []byte) (time.Time, error) {
	return s.uploadRaw(ctx, userID, projectID, fileName, content, false)
}

// UploadFileForce is UploadFile without the row-must-exist requirement.
func (s *Service) UploadFileForce(ctx context.Context, userID string, projectID int64, fileName, content string) (time.Time, error) {
	return s.uploadRaw(ctx, userID, projectID, fileName, []byte(content), true)
}

// UploadRawFileForce is UploadRawFile without the row-must-exist
// requirement: the row is inserted or fully replaced (last writer wins).
func (s *Service) UploadRawFileForce(ctx context.Context, userID string, projectID int64, fileName string, content []byte) (time.Time, error) {
	return s.uploadRaw(ctx, userID, projectID, fileName, content, true)
}

func (s *Service) uploadRaw(ctx context.Context, userID string, projectID int64, fileName string, content []byte, force bool) (time.Time, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return time.Time{}, err
	}

	var modified time.Time
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		filesRepo := s.repos.Files(tx)

		if force {
			f := &models.ProjectFile{ProjectID: projectID, AccountID: id,
				FileName: fileName, Role: models.RoleSource, Content: content}
			if err := filesRepo.UpsertProjectFile(ctx, f); err != nil {
				return err
			}
		} else {
			err := filesRepo.UpdateProjectFileContent(ctx, projectID, id, fileName, content)
			if errors.Is(err, common.ErrorNotFound) && legacyAutoCreate(fileName) {
				f := &models.ProjectFile{ProjectID: projectID, AccountID: id,
					FileName: fileName, Role: models.RoleSource, Content: content}
				err = filesRepo.InsertProjectFile(ctx, f)
			}
			if err != nil {
				return err
			}
		}

		m, err := s.repos.Projects(tx).TouchModified(ctx, projectID)
		if err != nil {
			return err
		}
		modified = m
		return nil
	})
	if err != nil {
		return time.Time{}, s.fail(ctx, collapse(err),
			ErrorContext{UserID: userID, ProjectID: projectID, FileName: fileName})
	}
	return modified, nil
}

// DownloadFile returns the stored content of one project file as text.
func (s *Service) DownloadFile(ctx context.Context, userID string, projectID int64, fileName string) (string, error) {
	content, err := s.DownloadRawFile(ctx, userID, projectID, fileName)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// DownloadRawFile returns the stored content of one project file.
// A missing row surfaces as common.ErrorNotFound.
func (s *Service) DownloadRawFile(ctx context.Context, userID string, projectID int64, fileName string) ([]byte, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repos.Files(tx).GetProjectFile(ctx, projectID, id, fileName)
		if err != nil {
			return err
		}
		content = f.Content
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID, FileName: fileName})
	}
	return content, nil
}

// DeleteFile removes one project file and returns the refreshed modification
// stamp. A zero-row delete takes the indistinct fatal path.
func (s *Service) DeleteFile(ctx context.Context, userID string, projectID int64, fileName string) (time.Time, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return time.Time{}, err
	}

	var modified time.Time
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Files(tx).DeleteProjectFile(ctx, projectID, id, fileName); err != nil {
			return err
		}
		m, err := s.repos.Projects(tx).TouchModified(ctx, projectID)
		if err != nil {
			return err
		}
		modified = m
		return nil
	})
	if err != nil {
		return time.Time{}, s.fail(ctx, collapse(err),
			ErrorContext{UserID: userID, ProjectID: projectID, FileName: fileName})
	}
	return modified, nil
}

// AddSourceFilesToProject registers source file names, skipping ones already
// present. Best effort: per-name outcomes are not inspected. An empty list
// is a no-op that does not even touch the modification stamp.
func (s *Service) AddSourceFilesToProject(ctx context.Context, userID string, projectID int64, fileNames ...string) error {
	return s.changeProjectFiles(ctx, userID, projectID, models.RoleSource, true, fileNames)
}

// AddOutputFilesToProject registers build-output file names.
func (s *Service) AddOutputFilesToProject(ctx context.Context, userID string, projectID int64, fileNames ...string) error {
	return s.changeProjectFiles(ctx, userID, projectID, models.RoleTarget, true, fileNames)
}

// RemoveSourceFilesFromProject drops source file rows by name, ignoring
// absent names.
func (s *Service) RemoveSourceFilesFromProject(ctx context.Context, userID string, projectID int64, fileNames ...string) error {
	return s.changeProjectFiles(ctx, userID, projectID, models.RoleSource, false, fileNames)
}

// RemoveOutputFilesFromProject drops build-output file rows by name.
func (s *Service) RemoveOutputFilesFromProject(ctx context.Context, userID string, projectID int64, fileNames ...string) error {
	return s.changeProjectFiles(ctx, userID, projectID, models.RoleTarget, false, fileNames)
}

func (s *Service) changeProjectFiles(ctx context.Context, userID string, projectID int64, role models.FileRole, add bool, fileNames []string) error {
	id, err := hexid.Decode(userID)
	if err != nil {
		return err
	}
	if len(fileNames) == 0 {
		return nil
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		filesRepo := s.repos.Files(tx)
		if add {
			if err := filesRepo.AddProjectFiles(ctx, projectID, id, role, fileNames); err != nil {
				return err
			}
		} else {
			if err := filesRepo.RemoveProjectFiles(ctx, projectID, id, fileNames); err != nil {
				return err
			}
		}
		_, err := s.repos.Projects(tx).TouchModified(ctx, projectID)
		return err
	})
	if err != nil {
		return s.fail(ctx, collapse(err), ErrorContext{UserID: userID, ProjectID: projectID})
	}
	return nil
}

// GetProjectSourceFiles lists the source file names of a project.
func (s *Service) GetProjectSourceFiles(ctx context.Context, userID string, projectID int64) ([]string, error) {
	return s.listProjectFiles(ctx, userID, projectID, models.RoleSource)
}

// GetProjectOutputFiles lists the build-output file names of a project.
func (s *Service) GetProjectOutputFiles(ctx context.Context, userID string, projectID int64) ([]string, error) {
	return s.listProjectFiles(ctx, userID, projectID, models.RoleTarget)
}

func (s *Service) listProjectFiles(ctx context.Context, userID string, projectID int64, role models.FileRole) ([]string, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return nil, err
	}

	var names []string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// Listing a deleted project's files must fail with not-found, not
		// return an empty list.
		if _, err := s.repos.Projects(tx).Get(ctx, id, projectID); err != nil {
			return err
		}
		list, err := s.repos.Files(tx).ListProjectFiles(ctx, projectID, id, role)
		if err != nil {
			return err
		}
		names = list
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID})
	}
	return names, nil
}

// AddFilesToUser registers per-user file names; calling it twice with
// overlapping lists is idempotent.
func (s *Service) AddFilesToUser(ctx context.Context, userID string, fileNames ...string) error {
	id, err := hexid.Decode(userID)
	if err != nil {
		return err
	}
	if len(fileNames) == 0 {
		return nil
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Files(tx).AddUserFiles(ctx, id, fileNames)
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{UserID: userID})
	}
	return nil
}

// GetUserFiles lists the user's non-project files.
func (s *Service) GetUserFiles(ctx context.Context, userID string) ([]string, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return nil, err
	}

	var names []string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		list, err := s.repos.Files(tx).ListUserFiles(ctx, id)
		if err != nil {
			return err
		}
		names = list
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, err, ErrorContext{UserID: userID})
	}
	return names, nil
}

// UploadUserFile inserts or fully replaces a per-user file (last writer wins).
func (s *Service) UploadUserFile(ctx context.Context, userID string, fileName string, content []byte) error {
	id, err := hexid.Decode(userID)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f := &models.UserFile{AccountID: id, FileName: fileName, Content: content}
		return s.repos.Files(tx).UpsertUserFile(ctx, f)
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{UserID: userID, FileName: fileName})
	}
	return nil
}

// DownloadUserFile returns the stored content of one per-user file.
// A missing row surfaces as common.ErrorNotFound.
func (s *Service) DownloadUserFile(ctx context.Context, userID string, fileName string) ([]byte, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repos.Files(tx).GetUserFile(ctx, id, fileName)
		if err != nil {
			return err
		}
		content = f.Content
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, err, ErrorContext{UserID: userID, FileName: fileName})
	}
	return content, nil
}

// DeleteUserFile removes one per-user file. A zero-row delete takes the
// indistinct fatal path.
func (s *Service) DeleteUserFile(ctx context.Context, userID string, fileName string) error {
	id, err := hexid.Decode(userID)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Files(tx).DeleteUserFile(ctx, id, fileName)
	})
	if err != nil {
		return s.fail(ctx, collapse(err), ErrorContext{UserID: userID, FileName: fileName})
	}
	return nil
}

// UploadTempFile stores an ephemeral blob and returns its external handle,
// hexid.TempFilePrefix followed by the lowercase hex id.
func (s *Service) UploadTempFile(ctx context.Context, content []byte) (string, error) {
	var handle string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		id, err := s.repos.Files(tx).InsertTempFile(ctx, content)
		if err != nil {
			return err
		}
		handle = hexid.EncodeTempHandle(id)
		return nil
	})
	if err != nil {
		return "", s.fail(ctx, err, ErrorContext{})
	}
	return handle, nil
}

// OpenTempFile returns the blob behind a temp handle. The prefix check is
// pure and rejects malformed handles before any database access.
func (s *Service) OpenTempFile(ctx context.Context, handle string) ([]byte, error) {
	id, err := hexid.DecodeTempHandle(handle)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		c, err := s.repos.Files(tx).GetTempFile(ctx, id)
		if err != nil {
			return err
		}
		content = c
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, err, ErrorContext{FileName: handle})
	}
	return content, nil
}

// DeleteTempFile removes the blob behind a temp handle; absent rows are
// ignored. Malformed handles are rejected before any database access.
func (s *Service) DeleteTempFile(ctx context.Context, handle string) error {
	id, err := hexid.DecodeTempHandle(handle)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Files(tx).DeleteTempFile(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{FileName: handle})
	}
	return nil
}
