package users

import (
	"context"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
