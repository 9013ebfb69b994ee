package projects

import (
	"context"
	"time"

	"github.com/blockstudio/server/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Project) (*models.Project, error)
	Get(ctx context.Context, accountID, projectID int64) (*models.Project, error)
	ListIDs(ctx context.Context, accountID int64) ([]int64, error)
	Delete(ctx context.Context, accountID, projectID int64) error
	SetField(ctx context.Context, projectID int64, field models.ProjectField, value any) (time.Time, error)
	TouchModified(ctx context.Context, projectID int64) (time.Time, error)
}
