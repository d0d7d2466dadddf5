package versions

import (
	"context"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

type Repository interface {
	// CreateNext inserts the version with the next monotonic number for its
	// file and returns the allocated number. Two racing writers cannot both
	// claim the same number; the loser fails with ErrVersionConflict and may
	// retry.
	CreateNext(ctx context.Context, version *models.FileVersion) (int64, error)
	ListByFile(ctx context.Context, fileID string) ([]*models.FileVersion, error)
}
