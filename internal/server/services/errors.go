package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blockstudio/server/internal/common"
)

// ErrorContext carries whichever identifiers were in scope when an
// operation failed. Zero values mean "not applicable".
type ErrorContext struct {
	UserID    string
	ProjectID int64
	FileName  string
}

// Error is the single fatal error type every failed store operation
// surfaces. The cause is preserved for errors.Is/As, but callers are not
// expected to recover: the contract is log, propagate, let the outer layer
// tell the user to try again.
type Error struct {
	ErrorContext
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("storage failure")
	if e.UserID != "" {
		fmt.Fprintf(&sb, " user=%s", e.UserID)
	}
	if e.ProjectID != 0 {
		fmt.Fprintf(&sb, " project=%d", e.ProjectID)
	}
	if e.FileName != "" {
		fmt.Fprintf(&sb, " file=%s", e.FileName)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// fail logs the failure with its context and wraps it as a fatal *Error.
// Argument errors pass through untouched: they are raised before any
// database work and are the caller's fault, not the store's.
func (s *Service) fail(ctx context.Context, err error, ec ErrorContext) error {
	if errors.Is(err, common.ErrorBadArgument) {
		return err
	}
	s.log.Error(ctx, "storage failure",
		"err", err, "user_id", ec.UserID, "project_id", ec.ProjectID, "file_name", ec.FileName)
	return &Error{ErrorContext: ec, Err: err}
}

// collapse folds a repository not-found into the indistinct "unknown
// database error". Zero-row updates and deletes take this path: callers
// cannot tell a missing record from a database malfunction.
func collapse(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorUnknown
	}
	return err
}
