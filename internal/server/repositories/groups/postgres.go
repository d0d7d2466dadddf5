package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context, group *models.Group) error {
	query := `INSERT INTO groups (id, name, owner_id) VALUES ($1, $2, $3);`
	if _, err := r.db.ExecContext(ctx, query, group.ID, group.Name, group.OwnerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	query := `SELECT id, name, owner_id, created_at FROM groups WHERE id=$1`
	g := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select group: %w", err)
	}
	return g, nil
}

// AddMember is idempotent: adding an existing member is not an error.
func (r *PostgresRepository) AddMember(ctx context.Context, groupID, userID string) error {
	query := `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING;`
	if _, err := r.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT group_id FROM group_members WHERE user_id=$1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select memberships: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
