package groups

import (
	"context"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id string) (*models.Group, error)
	AddMember(ctx context.Context, groupID, userID string) error
	// ListGroupIDsForUser returns ids of every group the user belongs to;
	// used to collect group-path grants during access resolution.
	ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error)
}
