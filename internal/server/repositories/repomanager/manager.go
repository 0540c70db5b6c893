package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/bucketvault/internal/dbx"
	"github.com/dmitrijs2005/bucketvault/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/bucketvault/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction handle, so services decide the transactional scope.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Buckets(db dbx.DBTX) buckets.Repository
}
