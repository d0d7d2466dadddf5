package grants

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/dbx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

// PostgresRepository implements grant storage over a dbx.DBTX (*sql.DB or
// *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const grantColumns = `id, file_id, recipient_id, recipient_email, group_id, permissions,
	expires_at, max_access_count, access_count, password_hash, revoked, created_by, created_at`

func (r *PostgresRepository) Create(ctx context.Context, grant *models.ShareGrant) error {
	query := `
		INSERT INTO share_grants (id, file_id, recipient_id, recipient_email, group_id, permissions,
			expires_at, max_access_count, password_hash, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := r.db.ExecContext(ctx, query,
		grant.ID, grant.FileID,
		nullString(grant.RecipientID), nullString(grant.RecipientEmail), nullString(grant.GroupID),
		grant.Permissions.Encode(), grant.ExpiresAt, grant.MaxAccessCount,
		grant.PasswordHash, grant.CreatedBy)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.ShareGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM share_grants WHERE id=$1`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select grant: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, common.ErrNotFound
	}
	return scanGrant(rows)
}

func (r *PostgresRepository) ListForFile(ctx context.Context, fileID string) ([]*models.ShareGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM share_grants WHERE file_id=$1 AND revoked=FALSE ORDER BY created_at`
	return r.list(ctx, query, fileID)
}

func (r *PostgresRepository) ListMatching(ctx context.Context, fileID, userID, email string) ([]*models.ShareGrant, error) {
	query := `
		SELECT ` + grantColumns + ` FROM share_grants
		WHERE file_id=$1 AND revoked=FALSE AND (
			recipient_id = $2
			OR ($3 <> '' AND recipient_email = $3)
			OR group_id IN (SELECT group_id FROM group_members WHERE user_id = $2)
		)
		ORDER BY created_at;
	`
	return r.list(ctx, query, fileID, userID, email)
}

func (r *PostgresRepository) ListForRecipient(ctx context.Context, userID, email string) ([]*models.ShareGrant, error) {
	query := `
		SELECT ` + grantColumns + ` FROM share_grants
		WHERE revoked=FALSE AND (
			recipient_id = $1
			OR ($2 <> '' AND recipient_email = $2)
			OR group_id IN (SELECT group_id FROM group_members WHERE user_id = $1)
		)
		ORDER BY created_at;
	`
	return r.list(ctx, query, userID, email)
}

// ConsumeAccess performs the quota increment as one guarded statement, so
// concurrent consumers can never both act on the same prior counter value.
func (r *PostgresRepository) ConsumeAccess(ctx context.Context, grantID string) (bool, error) {
	query := `
		UPDATE share_grants SET access_count = access_count + 1
		WHERE id=$1 AND revoked=FALSE
			AND (expires_at IS NULL OR expires_at > now())
			AND (max_access_count IS NULL OR access_count < max_access_count);
	`
	result, err := r.db.ExecContext(ctx, query, grantID)
	if err != nil {
		return false, fmt.Errorf("failed to consume access: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra == 1, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, grantID string) error {
	query := `UPDATE share_grants SET revoked=TRUE WHERE id=$1`
	result, err := r.db.ExecContext(ctx, query, grantID)
	if err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) RevokeAllForFile(ctx context.Context, fileID string) (int64, error) {
	query := `UPDATE share_grants SET revoked=TRUE WHERE file_id=$1 AND revoked=FALSE`
	result, err := r.db.ExecContext(ctx, query, fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke grants: %w", err)
	}
	return result.RowsAffected()
}

// RepairIdentity relies on the recipient_id IS NULL predicate for
// idempotence: a grant already repaired no longer matches, so concurrent
// repairs cannot repair it twice.
func (r *PostgresRepository) RepairIdentity(ctx context.Context, email, userID string) (int64, error) {
	query := `UPDATE share_grants SET recipient_id=$2 WHERE recipient_email=$1 AND recipient_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, email, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to repair grants: %w", err)
	}
	return result.RowsAffected()
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.ShareGrant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select grants: %w", err)
	}
	defer rows.Close()

	var result []*models.ShareGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanGrant(rows *sql.Rows) (*models.ShareGrant, error) {
	g := &models.ShareGrant{}
	var recipientID, recipientEmail, groupID sql.NullString
	var expiresAt sql.NullTime
	var maxAccess sql.NullInt64
	var encodedPerms string

	err := rows.Scan(&g.ID, &g.FileID, &recipientID, &recipientEmail, &groupID,
		&encodedPerms, &expiresAt, &maxAccess, &g.AccessCount, &g.PasswordHash,
		&g.Revoked, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan grant: %w", err)
	}

	g.RecipientID = recipientID.String
	g.RecipientEmail = recipientEmail.String
	g.GroupID = groupID.String
	if expiresAt.Valid {
		t := expiresAt.Time
		g.ExpiresAt = &t
	}
	if maxAccess.Valid {
		n := maxAccess.Int64
		g.MaxAccessCount = &n
	}

	g.Permissions, err = models.DecodePermissionSet(encodedPerms)
	if err != nil {
		return nil, fmt.Errorf("corrupt permission set for grant %s: %w", g.ID, err)
	}
	return g, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
