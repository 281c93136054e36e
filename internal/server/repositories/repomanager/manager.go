// Package repomanager wires concrete repository implementations to database
// handles and owns schema migration at startup.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cardvault/internal/dbx"
	"github.com/dmitrijs2005/cardvault/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/cardvault/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
