package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/dbx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, owner_id, display_name, original_name, size, mime_type,
	storage_key, encrypted, key_ref, upload_status, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (id, owner_id, display_name, original_name, size, mime_type, storage_key, encrypted, key_ref, upload_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.OwnerID, file.DisplayName, file.OriginalName, file.Size,
		file.MimeType, file.StorageKey, file.Encrypted, file.KeyRef, file.UploadStatus)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + selectColumns + ` FROM files WHERE id=$1`
	f := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.OwnerID, &f.DisplayName, &f.OriginalName, &f.Size, &f.MimeType,
		&f.StorageKey, &f.Encrypted, &f.KeyRef, &f.UploadStatus, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error) {
	query := `SELECT ` + selectColumns + ` FROM files WHERE owner_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f := &models.File{}
		if err := rows.Scan(
			&f.ID, &f.OwnerID, &f.DisplayName, &f.OriginalName, &f.Size, &f.MimeType,
			&f.StorageKey, &f.Encrypted, &f.KeyRef, &f.UploadStatus, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkUploaded flips upload_status to completed. Exactly one row must be
// affected.
func (r *PostgresRepository) MarkUploaded(ctx context.Context, id string) error {
	query := `UPDATE files SET upload_status='completed', updated_at=now() WHERE id=$1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark uploaded: %w", err)
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

func (r *PostgresRepository) UpdateCurrent(ctx context.Context, id string, size int64, storageKey string) error {
	query := `UPDATE files SET size=$2, storage_key=$3, updated_at=now() WHERE id=$1`
	result, err := r.db.ExecContext(ctx, query, id, size, storageKey)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
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
