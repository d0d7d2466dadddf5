package files

import (
	"context"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error)
	MarkUploaded(ctx context.Context, id string) error
	// UpdateCurrent mirrors the latest version's size and storage key onto
	// the file row.
	UpdateCurrent(ctx context.Context, id string, size int64, storageKey string) error
}
