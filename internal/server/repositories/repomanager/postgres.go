// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/dbx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/migrations"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/accessevents"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/files"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/grants"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/groups"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/users"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/versions"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Groups(db dbx.DBTX) groups.Repository {
	return groups.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Files(db dbx.DBTX) files.Repository {
	return files.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Versions(db dbx.DBTX) versions.Repository {
	return versions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Grants(db dbx.DBTX) grants.Repository {
	return grants.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) AccessEvents(db dbx.DBTX) accessevents.Repository {
	return accessevents.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
