package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/buildlog/internal/dbx"
	"github.com/dmitrijs2005/buildlog/internal/server/repositories/categories"
	"github.com/dmitrijs2005/buildlog/internal/server/repositories/projects"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Projects(db dbx.DBTX) projects.Repository
	Categories(db dbx.DBTX) categories.Repository
}
