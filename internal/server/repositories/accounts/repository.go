package accounts

import (
	"context"

	"github.com/blockstudio/server/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, email, name string) (*models.Account, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	SetField(ctx context.Context, id int64, field models.AccountField, value any) error
	List(ctx context.Context, afterID int64, limit int) ([]*models.Account, error)
	SearchByEmailPrefix(ctx context.Context, prefix string, limit int) ([]*models.Account, error)
}
