package models

// FileRole distinguishes editable sources from build outputs.
type FileRole string

const (
	RoleSource FileRole = "source"
	RoleTarget FileRole = "target"
)

// ProjectFile is a file scoped to (project, account, name). Content defaults
// to empty, not NULL.
type ProjectFile struct {
	ProjectID int64
	AccountID int64
	FileName  string
	Role      FileRole
	Content   []byte
}

// UserFile is a per-account file outside any project, e.g. the signing
// keystore or the backpack cache.
type UserFile struct {
	AccountID int64
	FileName  string
	Content   []byte
}

// TempFile is an ephemeral blob addressed externally by a __TEMP__ handle.
type TempFile struct {
	ID      int64
	Content []byte
}
