package grants

import (
	"context"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, grant *models.ShareGrant) error
	GetByID(ctx context.Context, id string) (*models.ShareGrant, error)

	// ListForFile returns every non-revoked grant of a file, for duplicate
	// detection and owner-facing listings.
	ListForFile(ctx context.Context, fileID string) ([]*models.ShareGrant, error)

	// ListMatching returns every non-revoked grant of the file reachable by
	// the requester: by resolved identity, by email, or through group
	// membership. Liveness beyond the revoked flag is evaluated by the
	// caller so expiry/quota semantics stay in one place.
	ListMatching(ctx context.Context, fileID, userID, email string) ([]*models.ShareGrant, error)

	// ListForRecipient returns non-revoked grants targeting the user
	// directly or via email ("shared with me").
	ListForRecipient(ctx context.Context, userID, email string) ([]*models.ShareGrant, error)

	// ConsumeAccess increments the grant's access counter in a single
	// guarded statement. It reports false when the grant is missing or no
	// longer live (revoked, expired, or at its ceiling) without mutating it.
	ConsumeAccess(ctx context.Context, grantID string) (bool, error)

	// Revoke soft-deletes the grant. Idempotent; the row is never removed.
	Revoke(ctx context.Context, grantID string) error

	// RevokeAllForFile revokes every live grant of a file, returning how
	// many were affected.
	RevokeAllForFile(ctx context.Context, fileID string) (int64, error)

	// RepairIdentity attaches the resolved user id to identity-pending
	// grants for the email and returns the number repaired. Safe to run
	// redundantly and concurrently.
	RepairIdentity(ctx context.Context, email, userID string) (int64, error)
}
