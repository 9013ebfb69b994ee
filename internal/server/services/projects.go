package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/hexid"
	"github.com/blockstudio/server/internal/server/models"
)

// CreateProject inserts the project row and all provided source files in one
// transaction: if any file insert fails the whole creation rolls back.
// Works for any file count including zero.
func (s *Service) CreateProject(ctx context.Context, userID string, project *models.Project, sourceFiles []*models.ProjectFile) (*models.Project, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return nil, err
	}
	if project.Name == "" {
		return nil, fmt.Errorf("%w: empty project name", common.ErrorBadArgument)
	}

	var created *models.Project
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p := *project
		p.AccountID = id
		if p.GalleryID == 0 {
			p.GalleryID = models.GalleryNotPublished
		}
		if p.AttributionID == 0 {
			p.AttributionID = models.AttributionFromScratch
		}

		stored, err := s.repos.Projects(tx).Create(ctx, &p)
		if err != nil {
			return err
		}

		filesRepo := s.repos.Files(tx)
		for _, f := range sourceFiles {
			pf := *f
			pf.ProjectID = stored.ID
			pf.AccountID = id
			if pf.Role == "" {
				pf.Role = models.RoleSource
			}
			if err := filesRepo.InsertProjectFile(ctx, &pf); err != nil {
				return err
			}
		}

		created = stored
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, err, ErrorContext{UserID: userID})
	}
	return created, nil
}

// DeleteProject removes the project scoped to its owner; the schema cascade
// removes its files. Deleting a project the caller does not own is a silent
// no-op.
func (s *Service) DeleteProject(ctx context.Context, userID string, projectID int64) error {
	id, err := hexid.Decode(userID)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Projects(tx).Delete(ctx, id, projectID)
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID})
	}
	return nil
}

// GetProjects returns the ids of all projects the user owns.
func (s *Service) GetProjects(ctx context.Context, userID string) ([]int64, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		list, err := s.repos.Projects(tx).ListIDs(ctx, id)
		if err != nil {
			return err
		}
		ids = list
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, err, ErrorContext{UserID: userID})
	}
	return ids, nil
}

// GetProject returns the project metadata. Missing or foreign projects
// surface as common.ErrorNotFound.
func (s *Service) GetProject(ctx context.Context, userID string, projectID int64) (*models.Project, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return nil, err
	}

	var project *models.Project
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := s.repos.Projects(tx).Get(ctx, id, projectID)
		if err != nil {
			return err
		}
		project = p
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID})
	}
	return project, nil
}

// SetProjectField updates one project column through the closed field enum,
// refreshing the modification stamp in the same statement. The returned
// stamp is the value the database stored. Ownership is checked inside the
// same transaction; a missing or foreign project takes the indistinct
// fatal path, exactly like a zero-row update.
func (s *Service) SetProjectField(ctx context.Context, userID string, projectID int64, field models.ProjectField, value any) (time.Time, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return time.Time{}, err
	}

	var modified time.Time
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Projects(tx)
		if _, err := repo.Get(ctx, id, projectID); err != nil {
			return err
		}
		m, err := repo.SetField(ctx, projectID, field, value)
		if err != nil {
			return err
		}
		modified = m
		return nil
	})
	if err != nil {
		return time.Time{}, s.fail(ctx, collapse(err), ErrorContext{UserID: userID, ProjectID: projectID})
	}
	return modified, nil
}

// GetProjectField reads one project column through the closed field enum.
func (s *Service) GetProjectField(ctx context.Context, userID string, projectID int64, field models.ProjectField) (any, error) {
	p, err := s.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	switch field {
	case models.ProjectName:
		return p.Name, nil
	case models.ProjectSettings:
		return p.Settings, nil
	case models.ProjectHistory:
		return p.History, nil
	case models.ProjectGalleryID:
		return p.GalleryID, nil
	case models.ProjectAttributionID:
		return p.AttributionID, nil
	default:
		return nil, fmt.Errorf("%w: unknown project field %q", common.ErrorBadArgument, field)
	}
}
