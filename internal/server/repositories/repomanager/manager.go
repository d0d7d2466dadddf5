package repomanager

import (
	"context"
	"database/sql"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/dbx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/accessevents"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/files"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/grants"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/groups"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/users"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/versions"
)

// RepositoryManager vends repositories bound to an arbitrary DBTX so
// services can run several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Groups(db dbx.DBTX) groups.Repository
	Files(db dbx.DBTX) files.Repository
	Versions(db dbx.DBTX) versions.Repository
	Grants(db dbx.DBTX) grants.Repository
	AccessEvents(db dbx.DBTX) accessevents.Repository
}
