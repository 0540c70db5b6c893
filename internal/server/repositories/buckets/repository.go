package buckets

import (
	"context"

	"github.com/dmitrijs2005/bucketvault/internal/server/models"
)

// Repository stores bucket connections. Every user-scoped method filters by
// userID so a caller can never touch another user's rows.
type Repository interface {
	List(ctx context.Context, userID string) ([]*models.Bucket, error)
	Create(ctx context.Context, b *models.Bucket) (*models.Bucket, error)
	GetByID(ctx context.Context, userID, id string) (*models.Bucket, error)
	FindActive(ctx context.Context, userID string) (*models.Bucket, error)
	Count(ctx context.Context, userID string) (int, error)
	ExistsByName(ctx context.Context, userID, bucketName string) (bool, error)
	ClearDefaults(ctx context.Context, userID string) error
	SetDefault(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error

	ListSecrets(ctx context.Context) ([]models.SecretRecord, error)
	UpdateSecret(ctx context.Context, id, encrypted string) error
}
