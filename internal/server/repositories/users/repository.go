package users

import (
	"context"

	"github.com/dmitrijs2005/bucketvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// LockForUpdate takes a row lock on the user for the rest of the
	// surrounding transaction and returns the current bucket limit.
	LockForUpdate(ctx context.Context, id string) (int, error)
	SetBucketLimit(ctx context.Context, email string, limit int) error
}
