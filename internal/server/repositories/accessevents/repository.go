package accessevents

import (
	"context"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

// Repository is append-only by design: audit rows are never updated or
// deleted.
type Repository interface {
	Append(ctx context.Context, event *models.AccessEvent) error
	ListByGrant(ctx context.Context, grantID string) ([]*models.AccessEvent, error)
}
