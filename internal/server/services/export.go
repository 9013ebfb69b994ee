package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/hexid"
	"github.com/blockstudio/server/internal/server/models"
)

const (
	// RemixInfoFileName marks the legacy remix-history file that is never
	// exported.
	RemixInfoFileName = "youngandroidproject/remix_history"

	screenshotDirPrefix = "screenshots/"
	externalCompsPrefix = "assets/external_comps/"
	keystoreFileName    = "android.keystore"
)

// ExportOptions controls what ends up in an exported project archive.
type ExportOptions struct {
	// IncludeScreenshots keeps files under screenshots/.
	IncludeScreenshots bool
	// IncludeYail keeps generated .yail sources.
	IncludeYail bool
	// IncludeHistory appends the serialized project history as an extra
	// archive entry.
	IncludeHistory bool
	// IncludeKeystore appends the user's signing keystore when one exists.
	IncludeKeystore bool
	// ForGallery marks a public-gallery export, which must not carry
	// externally licensed component assets.
	ForGallery bool
	// ZipName overrides the archive name; default is "<project name>.aia".
	ZipName string
}

// ProjectSourceZip is an in-memory exported archive.
type ProjectSourceZip struct {
	ZipName  string
	Content  []byte
	NumFiles int
}

// ExportProjectSourceZip fetches the project and its source files in one
// transaction, applies the export filters, and builds the archive in memory.
// A project that yields zero exportable files is an error, and a gallery
// export aborts on the first externally licensed component asset.
func (s *Service) ExportProjectSourceZip(ctx context.Context, userID string, projectID int64, opts ExportOptions) (*ProjectSourceZip, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return nil, err
	}

	var (
		project *models.Project
		sources []*models.ProjectFile
		ksFile  *models.UserFile
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := s.repos.Projects(tx).Get(ctx, id, projectID)
		if err != nil {
			return err
		}
		list, err := s.repos.Files(tx).GetAllProjectFiles(ctx, projectID, id, models.RoleSource)
		if err != nil {
			return err
		}
		project = p
		sources = list

		if opts.IncludeKeystore {
			ks, err := s.repos.Files(tx).GetUserFile(ctx, id, keystoreFileName)
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			ksFile = ks
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	count := 0

	for _, f := range sources {
		if skip, err := excluded(f.FileName, opts); err != nil {
			return nil, s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID, FileName: f.FileName})
		} else if skip {
			continue
		}
		if err := addZipEntry(zw, f.FileName, f.Content); err != nil {
			return nil, s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID, FileName: f.FileName})
		}
		count++
	}

	if count == 0 {
		return nil, s.fail(ctx, fmt.Errorf("project %d has no exportable files", projectID),
			ErrorContext{UserID: userID, ProjectID: projectID})
	}

	if opts.IncludeHistory && project.History != "" {
		if err := addZipEntry(zw, "youngandroidproject/history", []byte(project.History)); err != nil {
			return nil, s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID})
		}
		count++
	}
	if ksFile != nil {
		if err := addZipEntry(zw, keystoreFileName, ksFile.Content); err != nil {
			return nil, s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID, FileName: keystoreFileName})
		}
		count++
	}

	if err := zw.Close(); err != nil {
		return nil, s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID})
	}

	name := opts.ZipName
	if name == "" {
		name = project.Name + ".aia"
	}
	return &ProjectSourceZip{ZipName: name, Content: buf.Bytes(), NumFiles: count}, nil
}

// excluded applies the per-file export filters. A disallowed gallery asset
// is an error, not a skip.
func excluded(fileName string, opts ExportOptions) (bool, error) {
	if fileName == RemixInfoFileName {
		return true, nil
	}
	if !opts.IncludeScreenshots && strings.HasPrefix(fileName, screenshotDirPrefix) {
		return true, nil
	}
	if !opts.IncludeYail && strings.HasSuffix(fileName, ".yail") {
		return true, nil
	}
	if opts.ForGallery && strings.HasPrefix(fileName, externalCompsPrefix) {
		return false, fmt.Errorf("gallery export disallowed: project contains extension %s", fileName)
	}
	return false, nil
}

func addZipEntry(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}
