package versions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/dbx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const uniqueViolation = "23505"

// CreateNext allocates the next version number inside the insert statement
// itself. The UNIQUE (file_id, version) index turns a lost race into a
// unique violation, surfaced as ErrVersionConflict so the caller can retry
// instead of double-claiming a number.
func (r *PostgresRepository) CreateNext(ctx context.Context, version *models.FileVersion) (int64, error) {
	query := `
		INSERT INTO file_versions (id, file_id, version, size, storage_key, change_note, created_by)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5, $6
		FROM file_versions WHERE file_id = $2
		RETURNING version;
	`
	var allocated int64
	err := r.db.QueryRowContext(ctx, query,
		version.ID, version.FileID, version.Size, version.StorageKey,
		version.ChangeNote, version.CreatedBy).Scan(&allocated)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, common.ErrVersionConflict
		}
		return 0, fmt.Errorf("failed to insert version: %w", err)
	}
	return allocated, nil
}

func (r *PostgresRepository) ListByFile(ctx context.Context, fileID string) ([]*models.FileVersion, error) {
	query := `
		SELECT id, file_id, version, size, storage_key, change_note, created_by, created_at
		FROM file_versions WHERE file_id=$1 ORDER BY version;
	`
	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	var result []*models.FileVersion
	for rows.Next() {
		v := &models.FileVersion{}
		if err := rows.Scan(&v.ID, &v.FileID, &v.Version, &v.Size, &v.StorageKey,
			&v.ChangeNote, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
