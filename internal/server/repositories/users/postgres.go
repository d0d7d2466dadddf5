package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/dbx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

// PostgresRepository implements user storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, display_name, salt, password_hash)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.DisplayName, user.Salt, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, display_name, salt, password_hash, created_at FROM users WHERE id=$1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, display_name, salt, password_hash, created_at FROM users WHERE email=$1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Salt, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select user: %w", err)
	}
	return u, nil
}
