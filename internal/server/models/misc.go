package models

import "time"

// Nonce is a short-lived token for device pairing. Rows older than the
// configured TTL are garbage and removed by an externally scheduled sweep.
type Nonce struct {
	Nonce     string
	AccountID int64
	ProjectID int64
	CreatedAt time.Time
}

// PWData is a pending password-reset request keyed by UUID.
type PWData struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Motd is the "message of the day" singleton stored as JSON in the misc
// table.
type Motd struct {
	Captain string `json:"captain"`
	Content string `json:"content"`
}

// SplashConfig is the splash-screen singleton stored as JSON in the misc
// table.
type SplashConfig struct {
	Version int    `json:"version"`
	Content string `json:"content"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// BuildStatus tracks the progress percentage a remote build server reported
// for one (host, account, project) triple.
type BuildStatus struct {
	Host      string
	AccountID int64
	ProjectID int64
	Progress  int
}

// Feedback is an append-only bug/feedback record submitted by a user.
type Feedback struct {
	Notes     string
	FoundIn   string
	FaultData string
	Comments  string
	Datestamp string
	Email     string
	ProjectID string
}

// CorruptionRecord is an append-only report of a corrupt project file
// observed by a client.
type CorruptionRecord struct {
	AccountID int64
	ProjectID int64
	FileName  string
	Message   string
}
