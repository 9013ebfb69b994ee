package nonces

import (
	"context"
	"time"

	"github.com/blockstudio/server/internal/server/models"
)

type Repository interface {
	UpsertNonce(ctx context.Context, nonce string, accountID, projectID int64) error
	GetNonce(ctx context.Context, nonce string) (*models.Nonce, error)
	DeleteNoncesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CreatePWData(ctx context.Context, id, email string) error
	GetPWData(ctx context.Context, id string) (*models.PWData, error)
	DeletePWDataBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
