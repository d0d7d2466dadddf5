package accessevents

import (
	"context"
	"fmt"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/dbx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, event *models.AccessEvent) error {
	query := `
		INSERT INTO access_events (id, grant_id, actor_id, kind, result, metadata)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.GrantID, event.ActorID, string(event.Kind), string(event.Result), event.Metadata)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByGrant(ctx context.Context, grantID string) ([]*models.AccessEvent, error) {
	query := `
		SELECT id, grant_id, actor_id, kind, result, metadata, created_at
		FROM access_events WHERE grant_id=$1 ORDER BY created_at;
	`
	rows, err := r.db.QueryContext(ctx, query, grantID)
	if err != nil {
		return nil, fmt.Errorf("failed to select access events: %w", err)
	}
	defer rows.Close()

	var result []*models.AccessEvent
	for rows.Next() {
		e := &models.AccessEvent{}
		if err := rows.Scan(&e.ID, &e.GrantID, &e.ActorID, &e.Kind, &e.Result, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
