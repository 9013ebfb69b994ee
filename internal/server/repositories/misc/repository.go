package misc

import (
	"context"

	"github.com/blockstudio/server/internal/server/models"
)

type Repository interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error

	UpsertBuildStatus(ctx context.Context, host string, accountID, projectID int64, progress int) error
	GetBuildStatus(ctx context.Context, host string, accountID, projectID int64) (int, error)

	GetBackpack(ctx context.Context, id string) (string, error)
	UpsertBackpack(ctx context.Context, id, content string) error

	UpsertIPAddress(ctx context.Context, key, address string) error
	GetIPAddress(ctx context.Context, key string) (string, error)

	IsWhitelisted(ctx context.Context, email string) (bool, error)
	InsertFeedback(ctx context.Context, f *models.Feedback) error
	InsertCorruptionRecord(ctx context.Context, rec *models.CorruptionRecord) error
}
