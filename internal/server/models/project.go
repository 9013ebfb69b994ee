package models

import "time"

const (
	// GalleryNotPublished is the gallery id sentinel for projects that were
	// never published.
	GalleryNotPublished int64 = -1

	// AttributionFromScratch is the attribution id sentinel for projects
	// built from scratch rather than remixed.
	AttributionFromScratch int64 = -1
)

// Project is a single user-owned application project. ModifiedAt is
// refreshed by every mutating file or field operation; callers always see
// the value read back from the database, never one computed locally.
type Project struct {
	ID            int64
	AccountID     int64
	Name          string
	Type          string
	Settings      string
	History       string
	CreatedAt     time.Time
	ModifiedAt    time.Time
	GalleryID     int64
	AttributionID int64
}

// ProjectField enumerates the mutable project columns reachable through the
// keyed field accessors.
type ProjectField string

const (
	ProjectName          ProjectField = "name"
	ProjectSettings      ProjectField = "settings"
	ProjectHistory       ProjectField = "history"
	ProjectGalleryID     ProjectField = "gallery_id"
	ProjectAttributionID ProjectField = "attribution_id"
)
